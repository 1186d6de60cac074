// Package history keeps one git repository per assessment. Every accepted
// submission and decision commits answers.json, so reviewers can list,
// read and diff earlier revisions.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"sra/api/internal/questionnaire"
)

const snapshotFile = "answers.json"

var ErrNotFound = errors.New("history not found")

type Snapshot struct {
	AssessmentID int64                  `json:"assessment_id,string"`
	Title        string                 `json:"title"`
	Status       string                 `json:"status"`
	Answers      []questionnaire.Record `json:"answers"`
}

type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// Change is one field that differs between two snapshots. Field is a
// question text, or "status".
type Change struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[int64]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// Commit writes the snapshot and commits it, creating the repo on first use.
func (s *Service) Commit(assessmentID int64, snap Snapshot, author, message string) (Commit, error) {
	lock := s.assessmentLock(assessmentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(assessmentID)
	if err != nil {
		return Commit{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}

	snap.AssessmentID = assessmentID
	if snap.Answers == nil {
		snap.Answers = []questionnaire.Record{}
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Commit{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return Commit{}, fmt.Errorf("write %s: %w", snapshotFile, err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return Commit{}, fmt.Errorf("git add snapshot: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: author,
			When:  time.Now(),
		},
	})
	if err != nil {
		return Commit{}, fmt.Errorf("commit snapshot: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj, snap.Status), nil
}

// History lists commits newest first. An assessment with no repo has none.
func (s *Service) History(assessmentID int64, limit int) ([]Commit, error) {
	lock := s.assessmentLock(assessmentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(assessmentID)
	if errors.Is(err, ErrNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		snap, err := readSnapshot(commitObj)
		if err != nil {
			return err
		}
		items = append(items, toCommit(commitObj, snap.Status))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) Snapshot(assessmentID int64, hash string) (Snapshot, Commit, error) {
	lock := s.assessmentLock(assessmentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(assessmentID)
	if err != nil {
		return Snapshot{}, Commit{}, err
	}
	commitObj, err := commitAt(repo, hash)
	if err != nil {
		return Snapshot{}, Commit{}, err
	}
	snap, err := readSnapshot(commitObj)
	if err != nil {
		return Snapshot{}, Commit{}, err
	}
	return snap, toCommit(commitObj, snap.Status), nil
}

// Diff compares two revisions. An empty from means the parent of to.
func (s *Service) Diff(assessmentID int64, from, to string) ([]Change, error) {
	lock := s.assessmentLock(assessmentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(assessmentID)
	if err != nil {
		return nil, err
	}
	toCommitObj, err := commitAt(repo, to)
	if err != nil {
		return nil, err
	}
	after, err := readSnapshot(toCommitObj)
	if err != nil {
		return nil, err
	}

	var before Snapshot
	switch {
	case from != "":
		fromCommitObj, err := commitAt(repo, from)
		if err != nil {
			return nil, err
		}
		if before, err = readSnapshot(fromCommitObj); err != nil {
			return nil, err
		}
	case toCommitObj.NumParents() > 0:
		parent, err := toCommitObj.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("read parent commit: %w", err)
		}
		if before, err = readSnapshot(parent); err != nil {
			return nil, err
		}
	}
	return DiffSnapshots(before, after), nil
}

// Remove deletes the assessment's repository.
func (s *Service) Remove(assessmentID int64) error {
	lock := s.assessmentLock(assessmentID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.repoPath(assessmentID)); err != nil {
		return fmt.Errorf("remove history: %w", err)
	}
	s.lockMu.Lock()
	delete(s.locks, assessmentID)
	s.lockMu.Unlock()
	return nil
}

// DiffSnapshots lists status and answer changes, status first then by question.
func DiffSnapshots(before, after Snapshot) []Change {
	changes := make([]Change, 0)
	if before.Status != after.Status {
		changes = append(changes, Change{Field: "status", Before: before.Status, After: after.Status})
	}

	beforeByQuestion := make(map[string]questionnaire.Record, len(before.Answers))
	for _, r := range before.Answers {
		beforeByQuestion[r.Question] = r
	}
	afterByQuestion := make(map[string]questionnaire.Record, len(after.Answers))
	for _, r := range after.Answers {
		afterByQuestion[r.Question] = r
	}

	answerChanges := make([]Change, 0)
	for question, a := range afterByQuestion {
		b, ok := beforeByQuestion[question]
		if ok && b == a {
			continue
		}
		change := Change{Field: question, After: display(a)}
		if ok {
			change.Before = display(b)
		}
		answerChanges = append(answerChanges, change)
	}
	for question, b := range beforeByQuestion {
		if _, ok := afterByQuestion[question]; !ok {
			answerChanges = append(answerChanges, Change{Field: question, Before: display(b)})
		}
	}
	sort.Slice(answerChanges, func(i, j int) bool { return answerChanges[i].Field < answerChanges[j].Field })
	return append(changes, answerChanges...)
}

func display(r questionnaire.Record) string {
	if r.Notes != "" {
		return r.Notes
	}
	if r.Answer {
		return "Yes"
	}
	return "No"
}

func (s *Service) repoPath(assessmentID int64) string {
	return filepath.Join(s.baseDir, strconv.FormatInt(assessmentID, 10))
}

func (s *Service) assessmentLock(assessmentID int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[assessmentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[assessmentID] = lock
	return lock
}

func (s *Service) open(assessmentID int64) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(assessmentID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit(assessmentID int64) (*git.Repository, error) {
	repo, err := s.open(assessmentID)
	if !errors.Is(err, ErrNotFound) {
		return repo, err
	}
	path := s.repoPath(assessmentID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func commitAt(repo *git.Repository, hash string) (*object.Commit, error) {
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: revision %s", ErrNotFound, hash)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: commit %s", ErrNotFound, hash)
	}
	return commitObj, nil
}

func readSnapshot(commitObj *object.Commit) (Snapshot, error) {
	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(contents), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func toCommit(commitObj *object.Commit, status string) Commit {
	return Commit{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
		Status:    status,
	}
}
