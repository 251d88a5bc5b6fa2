package repository

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"github.com/iliyamo/videotube-identity/internal/model"
)

// HistoryItem is one watch-history row joined with its video and, when it
// resolves, the video's owner.
type HistoryItem struct {
	Seq   uint64
	Video model.Video
	Owner *OwnerRow
}

// OwnerRow holds the public columns of a video owner.
type OwnerRow struct {
	ID       string
	Username string
	FullName string
	Avatar   string
}

// HistoryRepo stores the append-only watch history and the videos it
// references.
type HistoryRepo struct{ DB *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{DB: db} }

// Append adds videoID to the end of userID's history. The video must exist.
func (r *HistoryRepo) Append(ctx context.Context, userID, videoID string) error {
	var exists bool
	if err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM videos WHERE id=?)", videoID).Scan(&exists); err != nil {
		return fmt.Errorf("query video: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	if _, err := r.DB.ExecContext(ctx,
		"INSERT INTO watch_history (user_id, video_id) VALUES (?,?)", userID, videoID); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Items returns userID's history in append order. Nothing is queried until
// the sequence is ranged over, and every range runs a fresh query. The
// LEFT JOIN on the owner's primary key yields at most one owner per video.
func (r *HistoryRepo) Items(ctx context.Context, userID string) iter.Seq2[HistoryItem, error] {
	const q = `
		SELECT h.id, v.id, v.video_file, v.thumbnail, v.duration, v.title, COALESCE(v.description, ''),
		       v.owner_id, v.views, v.is_published, v.created_at, v.updated_at,
		       o.id, o.username, o.full_name, o.avatar
		FROM watch_history h
		JOIN videos v ON v.id = h.video_id
		LEFT JOIN users o ON o.id = v.owner_id
		WHERE h.user_id = ?
		ORDER BY h.id ASC`

	return func(yield func(HistoryItem, error) bool) {
		rows, err := r.DB.QueryContext(ctx, q, userID)
		if err != nil {
			yield(HistoryItem{}, fmt.Errorf("query history: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				it                       HistoryItem
				oID, oUser, oName, oAvat sql.NullString
			)
			v := &it.Video
			if err := rows.Scan(&it.Seq, &v.ID, &v.VideoFile, &v.Thumbnail, &v.Duration, &v.Title, &v.Description,
				&v.OwnerID, &v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt,
				&oID, &oUser, &oName, &oAvat); err != nil {
				yield(HistoryItem{}, fmt.Errorf("scan history: %w", err))
				return
			}
			if oID.Valid {
				it.Owner = &OwnerRow{ID: oID.String, Username: oUser.String, FullName: oName.String, Avatar: oAvat.String}
			}
			if !yield(it, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(HistoryItem{}, fmt.Errorf("iterate history: %w", err))
		}
	}
}
