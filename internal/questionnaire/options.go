package questionnaire

var sensitiveDataTypes = []string{
	"Health Information",
	"Biometric Data (Fingerprints, Face Recognition, DNA)",
	"Religious or Philosophical Beliefs",
	"Political Opinions",
	"Sexual Orientation",
	"Racial or Ethnic Origin",
	"Genetic Data",
	"SSN",
	"Trade Union Membership",
	"National ID/Passport Number",
	"Financial Information (Bank account / Credit card)",
}

var nonSensitiveDataTypes = []string{
	"Name",
	"Address",
	"Phone Number",
	"Email Address",
	"IP Address",
	"Date of Birth",
	"Location Data (GPS, Geolocation)",
	"Employment Information",
	"Education Records",
	"Online Identifiers (Cookies, Device IDs)",
	"Username/User ID",
	"Photographs (non-biometric)",
	"Vehicle Registration Number",
	"Postal Code",
	"Age",
	"Gender (non-sensitive)",
	"Marital Status",
}

var dataSubjectGroups = []string{
	"Customers",
	"Employees",
	"Children (under 18 years)",
	"Suppliers",
	"Contractors",
	"Website Users",
	"Prospects/Leads",
	"Partners",
	"Vendors",
	"Students",
	"Patients",
	"Visitors",
	"Applicants (Job/Program)",
	"Shareholders",
	"Members (Organization/Club)",
	"Volunteers",
	"Former Employees",
	"Third-party Representatives",
	"Public (General Public)",
	"Other Data Subjects",
}

var dataCollectionPurposes = []string{
	"Marketing and Advertising",
	"Customer Service and Support",
	"Legal Obligations and Compliance",
	"Contract Performance",
	"Human Resources Management",
	"Product Development and Improvement",
	"Fraud Prevention and Security",
	"Financial Transactions and Billing",
	"Research and Analytics",
	"Communication and Notifications",
	"Identity Verification",
	"Website Functionality and Personalization",
	"Quality Assurance and Testing",
	"Business Operations and Administration",
	"Data Processing on Behalf of Third Parties",
	"Public Health and Safety",
	"Legal Claims and Disputes",
	"Regulatory Reporting",
	"Training and Development",
	"Other Purposes",
}

var continents = []string{
	"Africa",
	"Antarctica",
	"Asia",
	"Europe",
	"North America",
	"Oceania",
	"South America",
}

var countries = []string{
	"United States",
	"United Kingdom",
	"Canada",
	"Australia",
	"Germany",
	"France",
	"Italy",
	"Spain",
	"Netherlands",
	"Belgium",
	"Switzerland",
	"Sweden",
	"Norway",
	"Denmark",
	"Finland",
	"Poland",
	"Ireland",
	"Portugal",
	"Austria",
	"Greece",
	"Japan",
	"China",
	"India",
	"South Korea",
	"Singapore",
	"Hong Kong",
	"Brazil",
	"Mexico",
	"Argentina",
	"Chile",
	"South Africa",
	"United Arab Emirates",
	"Saudi Arabia",
	"Israel",
	"New Zealand",
	"Other",
}

var securityMeasures = []string{
	"Password Protection",
	"Encryption at Rest",
	"Encryption in Transit",
	"Access Controls",
	"Multi-factor Authentication",
	"Data Masking",
	"Audit Logging",
	"Physical Security",
	"Network Security",
	"Intrusion Detection Systems",
	"Firewall Protection",
	"Data Loss Prevention (DLP)",
	"Security Information and Event Management (SIEM)",
	"Regular Security Assessments",
	"Vulnerability Scanning",
	"Penetration Testing",
	"Identity and Access Management (IAM)",
	"Single Sign-On (SSO)",
	"Token-based Authentication",
	"Other",
}

var accessReviewFrequencies = []string{
	"Monthly",
	"Quarterly",
	"Annually",
	"No review process",
}

var dataRetentionDurations = []string{
	"Less than 1 year",
	"1-3 years",
	"3-5 years",
	"5-7 years",
	"7-10 years",
	"More than 10 years",
	"Indefinite",
	OtherSpecify,
}

var dataProcessingScale = []string{
	"Less than 1,000",
	"1,000–50,000",
	"50,000–1 million",
	"More than 1 million",
}

// systemsOfRecord backs both the upstream and downstream questions.
var systemsOfRecord = []string{
	"Customer Relationship Management (CRM) System",
	"Enterprise Resource Planning (ERP) System",
	"Human Resources Information System (HRIS)",
	"Enterprise Content Management (ECM) System",
	"Business Intelligence (BI) Platform",
	"Marketing Automation Platform",
	"E-commerce Platform",
	"Customer Support Ticketing System",
	"Financial Management System",
	"Identity and Access Management (IAM) System",
	"Learning Management System (LMS)",
	"Project Management Tool",
	"Document Management System",
	"Email Marketing Platform",
	"Analytics and Reporting System",
	"Supply Chain Management System",
	"Vendor Management System",
	"Compliance Management System",
	"Data Warehouse",
	"Third-party API Integration",
}

var dataStorageLocations = []string{
	"On-premise",
	"Public Cloud",
	"Private Cloud",
	"Hybrid",
	OtherOption,
}
