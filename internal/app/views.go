package app

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/crowdroom/internal/domain"
)

// Views whitelist what leaves the server. Room ids never do.

type questionView struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	Approved  bool      `json:"approved"`
	Votes     int       `json:"votes"`
	CreatedAt time.Time `json:"createdAt"`
}

func newQuestionView(q *domain.Question) questionView {
	return questionView{
		ID:        q.ID,
		Content:   q.Content,
		Approved:  q.Approved,
		Votes:     q.Votes,
		CreatedAt: q.CreatedAt,
	}
}

// newQuestionList always returns a non-nil slice so an empty board encodes as [].
func newQuestionList(qs []domain.Question) []questionView {
	out := make([]questionView, 0, len(qs))
	for i := range qs {
		out = append(out, newQuestionView(&qs[i]))
	}
	return out
}

type pollView struct {
	ID        uuid.UUID      `json:"id"`
	Tally     map[string]int `json:"tally"`
	CreatedAt time.Time      `json:"createdAt"`
	EndedAt   *time.Time     `json:"endedAt"`
}

func newPollView(p *domain.Poll) pollView {
	return pollView{
		ID:        p.ID,
		Tally:     p.Tally.Clone(),
		CreatedAt: p.CreatedAt,
		EndedAt:   p.EndedAt,
	}
}

type pollStartView struct {
	ID uuid.UUID `json:"id"`
}

type choiceAck struct {
	Choice string `json:"choice"`
}

type reactionView struct {
	ID        string          `json:"id"`
	Position  int             `json:"position"`
	CodePoint json.RawMessage `json:"codePoint"`
}
