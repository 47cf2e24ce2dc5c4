package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/crowdroom/internal/domain"
)

const questionColumns = "id, room_id, content, approved, votes, created_at"

type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

func scanQuestion(row pgx.Row) (*domain.Question, error) {
	var q domain.Question
	if err := row.Scan(&q.ID, &q.RoomID, &q.Content, &q.Approved, &q.Votes, &q.CreatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepo) Create(ctx context.Context, roomID uuid.UUID, content string, createdAt time.Time) (*domain.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `
		INSERT INTO questions (room_id, content, created_at)
		VALUES ($1, $2, $3)
		RETURNING `+questionColumns,
		roomID, content, createdAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert question: %w", err)
	}
	return q, nil
}

func (r *QuestionRepo) List(ctx context.Context, roomID uuid.UUID, filter domain.QuestionFilter) ([]domain.Question, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		WHERE room_id = $1 AND (approved OR NOT $2)
		ORDER BY created_at, id`,
		roomID, filter == domain.ApprovedQuestions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	questions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Question, error) {
		q, err := scanQuestion(row)
		if err != nil {
			return domain.Question{}, err
		}
		return *q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan questions: %w", err)
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	return questions, nil
}

// Approve only writes when the question is still pending; a second approval
// reads the record back and reports changed=false.
func (r *QuestionRepo) Approve(ctx context.Context, roomID, questionID uuid.UUID) (*domain.Question, bool, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `
		UPDATE questions
		SET approved = TRUE
		WHERE id = $1 AND room_id = $2 AND NOT approved
		RETURNING `+questionColumns,
		questionID, roomID,
	))
	if err == nil {
		return q, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to approve question: %w", err)
	}

	q, err = scanQuestion(r.pool.QueryRow(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		WHERE id = $1 AND room_id = $2`,
		questionID, roomID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get question: %w", err)
	}
	return q, false, nil
}

func (r *QuestionRepo) Upvote(ctx context.Context, roomID, questionID uuid.UUID) (*domain.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `
		UPDATE questions
		SET votes = votes + 1
		WHERE id = $1 AND room_id = $2
		RETURNING `+questionColumns,
		questionID, roomID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upvote question: %w", err)
	}
	return q, nil
}

func (r *QuestionRepo) DeleteAll(ctx context.Context, roomID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE room_id = $1`, roomID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete questions: %w", err)
	}
	return tag.RowsAffected(), nil
}
