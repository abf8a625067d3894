package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rcliao/voicenote/internal/embedding"
	"github.com/rcliao/voicenote/internal/model"
)

// SearchParams holds parameters for searching transcripts.
type SearchParams struct {
	UserID string
	Query  string
	Vector embedding.Vector // optional; ranks matches by similarity when set
	Limit  int
}

// SearchResult wraps a transcript with its similarity to the query vector.
type SearchResult struct {
	model.VoiceTranscript
	Score float64 `json:"score"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search finds transcripts whose text contains the query substring literally.
// Without a vector the newest matches come first; with one, every match is
// scored and the best Limit are returned.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{`text LIKE ? ESCAPE '\'`}
	args := []interface{}{"%" + likeEscaper.Replace(p.Query) + "%"}

	if p.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, p.UserID)
	}

	query := fmt.Sprintf(`
		SELECT id, record_id, user_id, text, embedding, confidence, created_at
		FROM voice_transcripts
		WHERE %s
		ORDER BY created_at DESC`, strings.Join(where, " AND "))
	if p.Vector == nil {
		query += "\n\t\tLIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		r := SearchResult{VoiceTranscript: t}
		if p.Vector != nil {
			r.Score = embedding.CosineSimilarity(p.Vector, t.Embedding)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if p.Vector != nil {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
		if len(results) > limit {
			results = results[:limit]
		}
	}

	return results, nil
}
