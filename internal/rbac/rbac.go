package rbac

type Role string
type Action string

const (
	RoleOwner    Role = "owner"
	RoleApprover Role = "approver"
)

const (
	ActionCreateAssessment Action = "create_assessment"
	ActionSubmitAnswers    Action = "submit_answers"
	ActionReviewAll        Action = "review_all"
	ActionOpenThread       Action = "open_thread"
	ActionEndThread        Action = "end_thread"
	ActionComment          Action = "comment"
	ActionDecide           Action = "decide"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleApprover:
		return action == ActionReviewAll || action == ActionOpenThread || action == ActionEndThread ||
			action == ActionComment || action == ActionDecide
	case RoleOwner:
		return action == ActionCreateAssessment || action == ActionSubmitAnswers || action == ActionComment
	default:
		return false
	}
}

// Valid reports whether role is one a user may register with.
func Valid(role string) bool {
	switch Role(role) {
	case RoleOwner, RoleApprover:
		return true
	default:
		return false
	}
}

func Normalize(role string) Role {
	if Valid(role) {
		return Role(role)
	}
	return RoleOwner
}
