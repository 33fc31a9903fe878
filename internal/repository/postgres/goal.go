package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/models"
)

type GoalRepo struct {
	DB DBTX
}

const goalColumns = `id, created_at, worker_id, title, target_amount, current_amount, allocation_percentage, is_long_term, is_micro_investment, deadline`

const createGoal = `-- name: CreateGoal
INSERT INTO goals (id, created_at, worker_id, title, target_amount, current_amount, allocation_percentage, is_long_term, is_micro_investment, deadline)
VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9)
RETURNING ` + goalColumns

func (r *GoalRepo) CreateGoal(ctx context.Context, g models.Goal) (models.Goal, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createGoal,
		g.ID, g.CreatedAt, g.WorkerID, g.Title, g.TargetAmount,
		g.AllocationPercentage, g.IsLongTerm, g.IsMicroInvestment, g.Deadline,
	)
	created, err := pgx.CollectOneRow(rows, rowToGoal)
	if err != nil {
		return created, dbError("create goal", err)
	}

	return created, nil
}

const getGoal = `-- name: GetGoal
SELECT ` + goalColumns + ` FROM goals
WHERE worker_id = $1 AND id = $2
`

func (r *GoalRepo) GetGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID) (models.Goal, error) {
	rows, _ := r.DB.Query(ctx, getGoal, workerID, goalID)
	return collectGoal(rows)
}

const getGoalByTitle = `-- name: GetGoalByTitle
SELECT ` + goalColumns + ` FROM goals
WHERE worker_id = $1 AND title = $2
ORDER BY created_at
LIMIT 1
`

func (r *GoalRepo) GetGoalByTitle(ctx context.Context, workerID uuid.UUID, title string) (models.Goal, error) {
	rows, _ := r.DB.Query(ctx, getGoalByTitle, workerID, title)
	return collectGoal(rows)
}

const listGoals = `-- name: ListGoals
SELECT ` + goalColumns + ` FROM goals
WHERE worker_id = $1
ORDER BY created_at DESC, id
`

func (r *GoalRepo) ListGoals(ctx context.Context, workerID uuid.UUID) ([]models.Goal, error) {
	rows, _ := r.DB.Query(ctx, listGoals, workerID)
	goals, err := pgx.CollectRows(rows, rowToGoal)
	if err != nil {
		return nil, dbError("list goals", err)
	}

	return goals, nil
}

const updateGoal = `-- name: UpdateGoal
UPDATE goals
SET title = $3, target_amount = $4, allocation_percentage = $5, is_long_term = $6, deadline = $7
WHERE worker_id = $1 AND id = $2
RETURNING ` + goalColumns

func (r *GoalRepo) UpdateGoal(ctx context.Context, g models.Goal) (models.Goal, error) {
	rows, _ := r.DB.Query(ctx, updateGoal,
		g.WorkerID, g.ID, g.Title, g.TargetAmount, g.AllocationPercentage, g.IsLongTerm, g.Deadline,
	)
	return collectGoal(rows)
}

const addToGoal = `-- name: AddToGoal
UPDATE goals
SET current_amount = current_amount + $3
WHERE worker_id = $1 AND id = $2
RETURNING ` + goalColumns

func (r *GoalRepo) AddToGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID, amount decimal.Decimal) (models.Goal, error) {
	rows, _ := r.DB.Query(ctx, addToGoal, workerID, goalID, amount)
	return collectGoal(rows)
}

const deleteGoal = `-- name: DeleteGoal
DELETE FROM goals
WHERE worker_id = $1 AND id = $2
`

func (r *GoalRepo) DeleteGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteGoal, workerID, goalID)
	if err != nil {
		return dbError("delete goal", err)
	}
	return nil
}

func collectGoal(rows pgx.Rows) (models.Goal, error) {
	goal, err := pgx.CollectOneRow(rows, rowToGoal)

	switch {
	case err == nil:
		return goal, nil
	case errors.Is(err, pgx.ErrNoRows):
		return goal, apperrors.ErrGoalNotFound
	default:
		return goal, dbError("get goal", err)
	}
}

func rowToGoal(row pgx.CollectableRow) (models.Goal, error) {
	var g models.Goal
	err := row.Scan(
		&g.ID, &g.CreatedAt, &g.WorkerID, &g.Title, &g.TargetAmount, &g.CurrentAmount,
		&g.AllocationPercentage, &g.IsLongTerm, &g.IsMicroInvestment, &g.Deadline,
	)
	return g, err
}
