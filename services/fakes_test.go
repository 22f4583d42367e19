package services

import (
	"context"
	"sort"
	"sync"

	"github.com/Dosada05/stage-engine/models"
	"github.com/Dosada05/stage-engine/repositories"
	"github.com/lib/pq"
)

// In-memory stand-ins for the postgres repositories. They ignore the exec
// argument: the fake tx runner passes nil through, and the fakes have no
// transactional behavior to model.

type fakeTxRunner struct{}

func (fakeTxRunner) RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Publish(stageID int, eventType string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

func (n *fakeNotifier) published() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	copy(out, n.events)
	return out
}

func (n *fakeNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

type fakeStageRepo struct {
	mu      sync.Mutex
	nextID  int
	stages  map[int]*models.Stage
	rosters map[int][]models.RosterEntry
}

func newFakeStageRepo() *fakeStageRepo {
	return &fakeStageRepo{
		nextID:  1,
		stages:  make(map[int]*models.Stage),
		rosters: make(map[int][]models.RosterEntry),
	}
}

func (r *fakeStageRepo) Create(ctx context.Context, exec repositories.SQLExecutor, stage *models.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stage.ID = r.nextID
	r.nextID++
	if stage.Warnings == nil {
		stage.Warnings = pq.StringArray{}
	}
	cp := *stage
	r.stages[stage.ID] = &cp
	return nil
}

func (r *fakeStageRepo) GetByID(ctx context.Context, id int) (*models.Stage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stage, ok := r.stages[id]
	if !ok {
		return nil, repositories.ErrStageNotFound
	}
	cp := *stage
	cp.Warnings = append(pq.StringArray{}, stage.Warnings...)
	return &cp, nil
}

func (r *fakeStageRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.StageStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stage, ok := r.stages[id]
	if !ok {
		return repositories.ErrStageNotFound
	}
	stage.Status = status
	return nil
}

func (r *fakeStageRepo) AppendWarning(ctx context.Context, exec repositories.SQLExecutor, id int, warning string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stage, ok := r.stages[id]
	if !ok {
		return repositories.ErrStageNotFound
	}
	stage.Warnings = append(stage.Warnings, warning)
	return nil
}

func (r *fakeStageRepo) ClearWarnings(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stage, ok := r.stages[id]
	if !ok {
		return repositories.ErrStageNotFound
	}
	stage.Warnings = pq.StringArray{}
	return nil
}

func (r *fakeStageRepo) ListRoster(ctx context.Context, stageID int) ([]models.RosterEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := append([]models.RosterEntry(nil), r.rosters[stageID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seed < entries[j].Seed })
	return entries, nil
}

func (r *fakeStageRepo) ReplaceRoster(ctx context.Context, exec repositories.SQLExecutor, stageID int, entries []models.RosterEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]models.RosterEntry, len(entries))
	for i, e := range entries {
		e.StageID = stageID
		e.ID = i + 1
		stored[i] = e
	}
	r.rosters[stageID] = stored
	return nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1, matches: make(map[int]*models.Match)}
}

func cloneMatch(m *models.Match) *models.Match {
	cp := *m
	cp.HomeTeamID = cloneInt(m.HomeTeamID)
	cp.AwayTeamID = cloneInt(m.AwayTeamID)
	cp.HomeScore = cloneInt(m.HomeScore)
	cp.AwayScore = cloneInt(m.AwayScore)
	cp.HomeSourceMatchID = cloneInt(m.HomeSourceMatchID)
	cp.AwaySourceMatchID = cloneInt(m.AwaySourceMatchID)
	return &cp
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match.ID = r.nextID
	r.nextID++
	r.matches[match.ID] = cloneMatch(match)
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

func (r *fakeMatchRepo) ListByStage(ctx context.Context, stageID int, roundIndex *int, status *models.MatchStatus) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.StageID != stageID {
			continue
		}
		if roundIndex != nil && m.RoundIndex != *roundIndex {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		out = append(out, cloneMatch(m))
	}
	sortMatches(out)
	return out, nil
}

func (r *fakeMatchRepo) ListBySource(ctx context.Context, exec repositories.SQLExecutor, sourceMatchID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.matches {
		if (m.HomeSourceMatchID != nil && *m.HomeSourceMatchID == sourceMatchID) ||
			(m.AwaySourceMatchID != nil && *m.AwaySourceMatchID == sourceMatchID) {
			out = append(out, cloneMatch(m))
		}
	}
	sortMatches(out)
	return out, nil
}

func (r *fakeMatchRepo) UpdateScoreStatus(ctx context.Context, exec repositories.SQLExecutor, id int, homeScore, awayScore *int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.HomeScore = cloneInt(homeScore)
	m.AwayScore = cloneInt(awayScore)
	m.Status = status
	return nil
}

func (r *fakeMatchRepo) UpdateSourceMatchIDs(ctx context.Context, exec repositories.SQLExecutor, id int, homeSourceID, awaySourceID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.HomeSourceMatchID = cloneInt(homeSourceID)
	m.AwaySourceMatchID = cloneInt(awaySourceID)
	return nil
}

func (r *fakeMatchRepo) BindSide(ctx context.Context, exec repositories.SQLExecutor, id int, side models.Side, teamID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if side == models.SideHome {
		m.HomeTeamID = cloneInt(&teamID)
		m.HomePlaceholder = nil
	} else {
		m.AwayTeamID = cloneInt(&teamID)
		m.AwayPlaceholder = nil
	}
	return nil
}

func (r *fakeMatchRepo) DeleteByStage(ctx context.Context, exec repositories.SQLExecutor, stageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.matches {
		if m.StageID == stageID {
			delete(r.matches, id)
		}
	}
	return nil
}

func sortMatches(ms []*models.Match) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].RoundIndex != ms[j].RoundIndex {
			return ms[i].RoundIndex < ms[j].RoundIndex
		}
		if ms[i].MatchIndex != ms[j].MatchIndex {
			return ms[i].MatchIndex < ms[j].MatchIndex
		}
		return ms[i].ID < ms[j].ID
	})
}

// testEnv wires the services over the fakes.
type testEnv struct {
	stageRepo *fakeStageRepo
	matchRepo *fakeMatchRepo
	notifier  *fakeNotifier
	stages    StageService
	matches   MatchService
}

func newTestEnv() *testEnv {
	stageRepo := newFakeStageRepo()
	matchRepo := newFakeMatchRepo()
	notifier := &fakeNotifier{}
	locks := NewStageLocks()
	tx := fakeTxRunner{}
	return &testEnv{
		stageRepo: stageRepo,
		matchRepo: matchRepo,
		notifier:  notifier,
		stages:    NewStageService(tx, stageRepo, matchRepo, notifier, locks),
		matches:   NewMatchService(tx, stageRepo, matchRepo, NewPassthroughEvaluator(), notifier, locks),
	}
}

func (e *testEnv) addStage(t models.StageType, teamIDs ...int) *models.Stage {
	stage := &models.Stage{
		TournamentID: 1,
		Name:         "Test Stage",
		Type:         t,
		StageOrder:   1,
		Status:       models.StagePending,
		FieldCount:   2,
	}
	_ = e.stageRepo.Create(context.Background(), nil, stage)
	entries := make([]models.RosterEntry, len(teamIDs))
	for i, id := range teamIDs {
		entries[i] = models.RosterEntry{TeamID: id, Seed: i + 1}
	}
	_ = e.stageRepo.ReplaceRoster(context.Background(), nil, stage.ID, entries)
	return stage
}
