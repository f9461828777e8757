package curriculum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore is a PostgreSQL-backed Store. Tables and natural-key constraints are
// created by the database package migrations.
type PostgresStore struct {
	pgReader
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on top of an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pgReader: pgReader{q: pool}, pool: pool}, nil
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{pgReader: pgReader{q: tx}, tx: tx})
	})
}

// pgReader runs the find queries against a pool or a transaction.
type pgReader struct {
	q querier
}

func (r pgReader) FindSubjects(ctx context.Context, f SubjectFilter) ([]Subject, error) {
	var w where
	w.eq("name", f.Name)
	w.eq("board", string(f.Board))
	w.eq("grade", f.Grade)
	return findAll[Subject](ctx, r.q,
		`SELECT id::text, name, board, grade FROM subjects`+w.String()+` ORDER BY seq`, w.args)
}

func (r pgReader) FindChapters(ctx context.Context, f ChapterFilter) ([]Chapter, error) {
	var w where
	w.in("subject", f.Subjects, "text[]")
	return findAll[Chapter](ctx, r.q,
		`SELECT id::text, subject, chapter_name FROM chapters`+w.String()+` ORDER BY seq`, w.args)
}

func (r pgReader) FindTopics(ctx context.Context, f TopicFilter) ([]Topic, error) {
	var w where
	w.in("subject_id", f.SubjectIDs, "uuid[]")
	w.in("chapter_id", f.ChapterIDs, "uuid[]")
	return findAll[Topic](ctx, r.q,
		`SELECT id::text, subject_id::text, chapter_id::text, topic_name FROM topics`+w.String()+` ORDER BY seq`, w.args)
}

func (r pgReader) FindSubtopics(ctx context.Context, f SubtopicFilter) ([]Subtopic, error) {
	var w where
	w.in("sub_name", f.SubNames, "text[]")
	w.eq("chapter_name", f.ChapterName)
	w.eq("topic_name", f.TopicName)
	w.eq("subtopic_name", f.SubtopicName)
	return findAll[Subtopic](ctx, r.q,
		`SELECT id::text, sub_name, chapter_name, topic_name, subtopic_name FROM subtopics`+w.String()+` ORDER BY seq`, w.args)
}

func (r pgReader) FindVideos(ctx context.Context, f VideoFilter) ([]Video, error) {
	var w where
	w.in("sub_name", f.SubNames, "text[]")
	return findAll[Video](ctx, r.q,
		`SELECT id::text, sub_name, chapter_name, topic_name, subtopic_name, video_url FROM videos`+w.String()+` ORDER BY seq`, w.args)
}

func (r pgReader) FindQuizzes(ctx context.Context, f QuizFilter) ([]Quiz, error) {
	var w where
	w.in("video_url", f.VideoURLs, "text[]")
	return findAll[Quiz](ctx, r.q,
		`SELECT id::text, video_url, questions FROM quizzes`+w.String()+` ORDER BY seq`, w.args)
}

// pgTx writes inside a pgx transaction.
type pgTx struct {
	pgReader
	tx pgx.Tx
}

const (
	upsertSubjectSQL = `INSERT INTO subjects (name, board, grade) VALUES ($1, $2, $3)
		 ON CONFLICT (name, board, grade) DO UPDATE SET updated_at = now()
		 RETURNING id::text, (xmax = 0)`

	upsertChapterSQL = `INSERT INTO chapters (subject, chapter_name) VALUES ($1, $2)
		 ON CONFLICT (subject, chapter_name) DO UPDATE SET updated_at = now()
		 RETURNING (xmax = 0)`

	upsertTopicSQL = `INSERT INTO topics (subject_id, chapter_id, topic_name) VALUES ($1::uuid, $2::uuid, $3)
		 ON CONFLICT (subject_id, chapter_id, topic_name) DO UPDATE SET updated_at = now()
		 RETURNING (xmax = 0)`

	upsertSubtopicSQL = `INSERT INTO subtopics (sub_name, chapter_name, topic_name, subtopic_name) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (sub_name, chapter_name, topic_name, subtopic_name) DO UPDATE SET updated_at = now()
		 RETURNING (xmax = 0)`

	upsertVideoSQL = `INSERT INTO videos (sub_name, chapter_name, topic_name, subtopic_name, video_url) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (sub_name, chapter_name, topic_name, subtopic_name, video_url) DO UPDATE SET updated_at = now()
		 RETURNING (xmax = 0)`

	upsertQuizSQL = `INSERT INTO quizzes (video_url, questions) VALUES ($1, $2::jsonb)
		 ON CONFLICT (video_url) DO UPDATE SET questions = EXCLUDED.questions, updated_at = now()
		 RETURNING (xmax = 0)`

	insertVideoSQL = `INSERT INTO videos (sub_name, chapter_name, topic_name, subtopic_name, video_url) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING
		 RETURNING id::text`
)

func (t *pgTx) UpsertSubject(ctx context.Context, s Subject) (Subject, bool, error) {
	var created bool
	if err := t.tx.QueryRow(ctx, upsertSubjectSQL, s.Name, string(s.Board), s.Grade).Scan(&s.ID, &created); err != nil {
		return Subject{}, false, fmt.Errorf("upsert subject: %w", err)
	}
	return s, created, nil
}

func (t *pgTx) UpsertChapters(ctx context.Context, chapters []Chapter) (BulkResult, error) {
	rows := make([][]any, 0, len(chapters))
	for _, c := range chapters {
		rows = append(rows, []any{c.Subject, c.ChapterName})
	}
	return t.upsertBatch(ctx, upsertChapterSQL, rows)
}

func (t *pgTx) UpsertTopics(ctx context.Context, topics []Topic) (BulkResult, error) {
	rows := make([][]any, 0, len(topics))
	for _, tp := range topics {
		rows = append(rows, []any{tp.SubjectID, tp.ChapterID, tp.TopicName})
	}
	return t.upsertBatch(ctx, upsertTopicSQL, rows)
}

func (t *pgTx) UpsertSubtopics(ctx context.Context, subtopics []Subtopic) (BulkResult, error) {
	rows := make([][]any, 0, len(subtopics))
	for _, s := range subtopics {
		rows = append(rows, []any{s.SubName, s.ChapterName, s.TopicName, s.SubtopicName})
	}
	return t.upsertBatch(ctx, upsertSubtopicSQL, rows)
}

func (t *pgTx) UpsertVideos(ctx context.Context, videos []Video) (BulkResult, error) {
	rows := make([][]any, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []any{v.SubName, v.ChapterName, v.TopicName, v.SubtopicName, v.VideoURL})
	}
	return t.upsertBatch(ctx, upsertVideoSQL, rows)
}

func (t *pgTx) UpsertQuizzes(ctx context.Context, quizzes []Quiz) (BulkResult, error) {
	rows := make([][]any, 0, len(quizzes))
	for _, q := range quizzes {
		questions, err := json.Marshal(q.Questions)
		if err != nil {
			return BulkResult{}, fmt.Errorf("marshal questions for %s: %w", q.VideoURL, err)
		}
		rows = append(rows, []any{q.VideoURL, string(questions)})
	}
	return t.upsertBatch(ctx, upsertQuizSQL, rows)
}

func (t *pgTx) InsertVideo(ctx context.Context, v Video) (Video, error) {
	err := t.tx.QueryRow(ctx, insertVideoSQL,
		v.SubName, v.ChapterName, v.TopicName, v.SubtopicName, v.VideoURL,
	).Scan(&v.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Video{}, fmt.Errorf("video %s under %s: %w",
			v.VideoURL, subtopicPath(v.SubName, v.ChapterName, v.TopicName, v.SubtopicName), ErrConflict)
	}
	if err != nil {
		return Video{}, fmt.Errorf("insert video: %w", err)
	}
	return v, nil
}

// upsertBatch sends one statement per row in a single round trip. Each statement
// returns whether it inserted (xmax = 0) or updated an existing row.
func (t *pgTx) upsertBatch(ctx context.Context, sql string, rows [][]any) (BulkResult, error) {
	var res BulkResult
	if len(rows) == 0 {
		return res, nil
	}

	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(sql, args...)
	}

	br := t.tx.SendBatch(ctx, batch)
	for i := range rows {
		var inserted bool
		if err := br.QueryRow().Scan(&inserted); err != nil {
			br.Close()
			return res, fmt.Errorf("batch row %d: %w", i, err)
		}
		if inserted {
			res.Created++
		} else {
			res.Updated++
		}
	}
	if err := br.Close(); err != nil {
		return res, fmt.Errorf("close batch: %w", err)
	}
	return res, nil
}

func findAll[T any](ctx context.Context, q querier, sql string, args []any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[T])
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

// eq adds col = v unless v is empty.
func (w *where) eq(col, v string) {
	if v == "" {
		return
	}
	w.args = append(w.args, v)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", col, len(w.args)))
}

// in adds col = ANY(vs) unless vs is nil. An empty, non-nil vs matches nothing.
func (w *where) in(col string, vs []string, arrayType string) {
	if vs == nil {
		return
	}
	w.args = append(w.args, vs)
	w.conds = append(w.conds, fmt.Sprintf("%s = ANY($%d::%s)", col, len(w.args), arrayType))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
