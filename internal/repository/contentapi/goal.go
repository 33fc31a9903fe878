package contentapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/models"
)

type GoalRepo struct {
	client *Client
}

func (r *GoalRepo) CreateGoal(ctx context.Context, g models.Goal) (models.Goal, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}

	payload := goalPayload(g)
	payload["id"] = g.ID.String()
	payload["createdAt"] = g.CreatedAt.UTC().Format(time.RFC3339Nano)
	payload["tip_worker"] = g.WorkerID.String()
	payload["currentAmount"] = "0"
	payload["isMicroInvestment"] = g.IsMicroInvestment

	res, err := r.client.Do(ctx, http.MethodPost, goalsPath, nil, payload)
	if err != nil {
		return models.Goal{}, err
	}
	return decodeGoal(res)
}

func (r *GoalRepo) GetGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID) (models.Goal, error) {
	res, err := r.client.Do(ctx, http.MethodGet, goalsPath+"/"+goalID.String(), nil, nil)
	if err != nil {
		return models.Goal{}, mapGoalErr(err)
	}

	g, err := decodeGoal(res)
	if err != nil {
		return g, err
	}
	if g.WorkerID != workerID {
		return models.Goal{}, apperrors.ErrGoalNotFound
	}
	return g, nil
}

func (r *GoalRepo) GetGoalByTitle(ctx context.Context, workerID uuid.UUID, title string) (models.Goal, error) {
	goals, err := r.ListGoals(ctx, workerID)
	if err != nil {
		return models.Goal{}, err
	}

	// Oldest wins when titles repeat
	for i := len(goals) - 1; i >= 0; i-- {
		if goals[i].Title == title {
			return goals[i], nil
		}
	}
	return models.Goal{}, apperrors.ErrGoalNotFound
}

func (r *GoalRepo) ListGoals(ctx context.Context, workerID uuid.UUID) ([]models.Goal, error) {
	query := url.Values{}
	query.Set("filters[tip_worker][id][$eq]", workerID.String())
	query.Set("sort", "createdAt:desc")

	records, err := r.client.List(ctx, goalsPath, query)
	if err != nil {
		return nil, err
	}

	goals := make([]models.Goal, 0, len(records))
	for _, rec := range records {
		g := recordToGoal(rec)
		if g.WorkerID == workerID {
			goals = append(goals, g)
		}
	}
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].CreatedAt.After(goals[j].CreatedAt)
	})
	return goals, nil
}

func (r *GoalRepo) UpdateGoal(ctx context.Context, g models.Goal) (models.Goal, error) {
	if _, err := r.GetGoal(ctx, g.WorkerID, g.ID); err != nil {
		return models.Goal{}, err
	}

	res, err := r.client.Do(ctx, http.MethodPut, goalsPath+"/"+g.ID.String(), nil, goalPayload(g))
	if err != nil {
		return models.Goal{}, mapGoalErr(err)
	}
	return decodeGoal(res)
}

func (r *GoalRepo) AddToGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID, amount decimal.Decimal) (models.Goal, error) {
	g, err := r.GetGoal(ctx, workerID, goalID)
	if err != nil {
		return g, err
	}

	res, err := r.client.Do(ctx, http.MethodPut, goalsPath+"/"+goalID.String(), nil, map[string]any{
		"currentAmount": g.CurrentAmount.Add(amount).String(),
	})
	if err != nil {
		return models.Goal{}, mapGoalErr(err)
	}
	return decodeGoal(res)
}

func (r *GoalRepo) DeleteGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID) error {
	_, err := r.GetGoal(ctx, workerID, goalID)
	switch {
	case errors.Is(err, apperrors.ErrGoalNotFound):
		return nil
	case err != nil:
		return err
	}

	_, err = r.client.Do(ctx, http.MethodDelete, goalsPath+"/"+goalID.String(), nil, nil)
	if err != nil && !errors.Is(err, errNotFound) {
		return err
	}
	return nil
}

func goalPayload(g models.Goal) map[string]any {
	payload := map[string]any{
		"title":                g.Title,
		"targetAmount":         g.TargetAmount.String(),
		"allocationPercentage": g.AllocationPercentage,
		"isLongTerm":           g.IsLongTerm,
		"deadline":             nil,
	}
	if g.Deadline != nil {
		payload["deadline"] = g.Deadline.UTC().Format(time.RFC3339Nano)
	}
	return payload
}

func mapGoalErr(err error) error {
	if errors.Is(err, errNotFound) {
		return apperrors.ErrGoalNotFound
	}
	return err
}

func decodeGoal(res gjson.Result) (models.Goal, error) {
	rec, ok := unwrapOne(res)
	if !ok {
		return models.Goal{}, errors.New("content api: goal record missing in response")
	}
	return recordToGoal(rec), nil
}

func recordToGoal(rec record) models.Goal {
	return models.Goal{
		ID:                   rec.uuid(),
		CreatedAt:            rec.time("createdAt", "created_at"),
		WorkerID:             rec.relation("tip_worker", "workerId", "worker_id"),
		Title:                rec.str("title"),
		TargetAmount:         rec.decimal("targetAmount", "target_amount"),
		CurrentAmount:        rec.decimal("currentAmount", "current_amount"),
		AllocationPercentage: rec.integer("allocationPercentage", "allocation_percentage"),
		IsLongTerm:           rec.boolean("isLongTerm", "is_long_term"),
		IsMicroInvestment:    rec.boolean("isMicroInvestment", "is_micro_investment"),
		Deadline:             rec.optionalTime("deadline"),
	}
}
