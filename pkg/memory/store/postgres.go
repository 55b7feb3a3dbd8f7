package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engram-labs/engram/pkg/memory/model"
)

// PostgresStore implements Store on Postgres via pgx.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and returns a Postgres-backed Store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

const memoryColumns = `id, user_id, project_id, content, memory_type, importance, retrieval_count,
	COALESCE(tags, '{}'), COALESCE(source_conversation_id, ''), COALESCE(source_message_id, ''),
	last_retrieved_at, created_at, updated_at`

func scanMemory(row pgx.Row) (model.Memory, error) {
	var m model.Memory
	err := row.Scan(&m.ID, &m.UserID, &m.ProjectID, &m.Content, &m.MemoryType, &m.Importance,
		&m.RetrievalCount, &m.Tags, &m.SourceConversationID, &m.SourceMessageID,
		&m.LastRetrievedAt, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (ps *PostgresStore) collectMemories(ctx context.Context, query string, args ...any) ([]model.Memory, error) {
	rows, err := ps.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) InsertMemory(ctx context.Context, m model.Memory) (model.Memory, error) {
	row := ps.DB.QueryRow(ctx, `
		INSERT INTO memories (user_id, project_id, content, memory_type, importance, tags, source_conversation_id, source_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+memoryColumns,
		m.UserID, m.ProjectID, m.Content, m.MemoryType, model.ClampImportance(m.Importance),
		m.Tags, m.SourceConversationID, m.SourceMessageID)
	return scanMemory(row)
}

func (ps *PostgresStore) MemoriesByIDs(ctx context.Context, userID int64, projectID string, ids []int64) ([]model.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return ps.collectMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE id = ANY($1) AND user_id = $2 AND project_id = $3
		ORDER BY created_at DESC`, ids, userID, projectID)
}

func (ps *PostgresStore) TopMemories(ctx context.Context, userID int64, projectID string, limit int) ([]model.Memory, error) {
	return ps.collectMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE user_id = $1 AND project_id = $2
		ORDER BY importance DESC, created_at DESC
		LIMIT $3`, userID, projectID, limit)
}

func (ps *PostgresStore) ListMemories(ctx context.Context, userID int64) ([]model.Memory, error) {
	return ps.collectMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
}

func (ps *PostgresStore) SearchMemories(ctx context.Context, userID int64, keyword string) ([]model.Memory, error) {
	return ps.collectMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE user_id = $1 AND content ILIKE '%' || $2 || '%'
		ORDER BY created_at DESC`, userID, keyword)
}

func (ps *PostgresStore) UpdateMemory(ctx context.Context, id int64, upd model.MemoryUpdate) error {
	if upd.IsZero() {
		return nil
	}
	var fields []string
	var args []any
	idx := 1
	if upd.Content != nil {
		fields = append(fields, fmt.Sprintf("content = $%d", idx))
		args = append(args, *upd.Content)
		idx++
	}
	if upd.MemoryType != nil {
		fields = append(fields, fmt.Sprintf("memory_type = $%d", idx))
		args = append(args, *upd.MemoryType)
		idx++
	}
	if upd.Importance != nil {
		fields = append(fields, fmt.Sprintf("importance = $%d", idx))
		args = append(args, model.ClampImportance(*upd.Importance))
		idx++
	}
	if upd.Tags != nil {
		fields = append(fields, fmt.Sprintf("tags = $%d", idx))
		args = append(args, *upd.Tags)
		idx++
	}
	fields = append(fields, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	tag, err := ps.DB.Exec(ctx, fmt.Sprintf("UPDATE memories SET %s WHERE id = $%d", strings.Join(fields, ", "), idx), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) DeleteMemory(ctx context.Context, id int64) error {
	tag, err := ps.DB.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) DeleteMemoriesByKeyword(ctx context.Context, userID int64, keyword string) ([]int64, error) {
	rows, err := ps.DB.Query(ctx, `
		DELETE FROM memories
		WHERE user_id = $1 AND content ILIKE '%' || $2 || '%'
		RETURNING id`, userID, keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (ps *PostgresStore) MarkRetrieved(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := ps.DB.Exec(ctx, `
		UPDATE memories
		SET retrieval_count = retrieval_count + 1, last_retrieved_at = CURRENT_TIMESTAMP
		WHERE id = ANY($1)`, ids)
	return err
}

func (ps *PostgresStore) InsertGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	if g.Status == "" {
		g.Status = model.GoalActive
	}
	row := ps.DB.QueryRow(ctx, `
		INSERT INTO goals (user_id, title, description, status, priority, target_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, title, COALESCE(description, ''), status, priority, target_date, created_at, updated_at`,
		g.UserID, g.Title, g.Description, g.Status, g.Priority, g.TargetDate)
	var out model.Goal
	err := row.Scan(&out.ID, &out.UserID, &out.Title, &out.Description, &out.Status, &out.Priority,
		&out.TargetDate, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

func (ps *PostgresStore) ListGoals(ctx context.Context, userID int64) ([]model.Goal, error) {
	rows, err := ps.DB.Query(ctx, `
		SELECT id, user_id, title, COALESCE(description, ''), status, priority, target_date, created_at, updated_at
		FROM goals WHERE user_id = $1
		ORDER BY priority DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Goal
	for rows.Next() {
		var g model.Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &g.Status, &g.Priority,
			&g.TargetDate, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) UpdateGoal(ctx context.Context, id int64, upd model.GoalUpdate) error {
	if upd.IsZero() {
		return nil
	}
	var fields []string
	var args []any
	idx := 1
	if upd.Title != nil {
		fields = append(fields, fmt.Sprintf("title = $%d", idx))
		args = append(args, *upd.Title)
		idx++
	}
	if upd.Description != nil {
		fields = append(fields, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if upd.Status != nil {
		fields = append(fields, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if upd.Priority != nil {
		fields = append(fields, fmt.Sprintf("priority = $%d", idx))
		args = append(args, *upd.Priority)
		idx++
	}
	if upd.TargetDate != nil {
		fields = append(fields, fmt.Sprintf("target_date = $%d", idx))
		args = append(args, *upd.TargetDate)
		idx++
	}
	fields = append(fields, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	tag, err := ps.DB.Exec(ctx, fmt.Sprintf("UPDATE goals SET %s WHERE id = $%d", strings.Join(fields, ", "), idx), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) UpsertPreference(ctx context.Context, p model.Preference) (model.Preference, error) {
	row := ps.DB.QueryRow(ctx, `
		INSERT INTO preferences (user_id, preference_key, preference_value, category)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, preference_key)
		DO UPDATE SET preference_value = $3, category = $4, updated_at = CURRENT_TIMESTAMP
		RETURNING id, user_id, preference_key, COALESCE(preference_value, ''), COALESCE(category, ''), created_at, updated_at`,
		p.UserID, p.Key, p.Value, p.Category)
	var out model.Preference
	err := row.Scan(&out.ID, &out.UserID, &out.Key, &out.Value, &out.Category, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

func (ps *PostgresStore) ListPreferences(ctx context.Context, userID int64) ([]model.Preference, error) {
	rows, err := ps.DB.Query(ctx, `
		SELECT id, user_id, preference_key, COALESCE(preference_value, ''), COALESCE(category, ''), created_at, updated_at
		FROM preferences WHERE user_id = $1
		ORDER BY category, preference_key`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Preference
	for rows.Next() {
		var p model.Preference
		if err := rows.Scan(&p.ID, &p.UserID, &p.Key, &p.Value, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) GetPreference(ctx context.Context, userID int64, key string) (model.Preference, error) {
	row := ps.DB.QueryRow(ctx, `
		SELECT id, user_id, preference_key, COALESCE(preference_value, ''), COALESCE(category, ''), created_at, updated_at
		FROM preferences WHERE user_id = $1 AND preference_key = $2`, userID, key)
	var p model.Preference
	err := row.Scan(&p.ID, &p.UserID, &p.Key, &p.Value, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Preference{}, ErrNotFound
	}
	return p, err
}

func (ps *PostgresStore) InsertProject(ctx context.Context, p model.Project) (model.Project, error) {
	if p.Status == "" {
		p.Status = model.ProjectActive
	}
	row := ps.DB.QueryRow(ctx, `
		INSERT INTO projects (user_id, name, description, status, tech_stack, repository_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, name, COALESCE(description, ''), status, COALESCE(tech_stack, '{}'), COALESCE(repository_url, ''), created_at, updated_at`,
		p.UserID, p.Name, p.Description, p.Status, p.TechStack, p.RepositoryURL)
	var out model.Project
	err := row.Scan(&out.ID, &out.UserID, &out.Name, &out.Description, &out.Status, &out.TechStack,
		&out.RepositoryURL, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

func (ps *PostgresStore) ListProjects(ctx context.Context, userID int64) ([]model.Project, error) {
	rows, err := ps.DB.Query(ctx, `
		SELECT id, user_id, name, COALESCE(description, ''), status, COALESCE(tech_stack, '{}'), COALESCE(repository_url, ''), created_at, updated_at
		FROM projects WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Status, &p.TechStack,
			&p.RepositoryURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) UpdateProject(ctx context.Context, id int64, upd model.ProjectUpdate) error {
	if upd.IsZero() {
		return nil
	}
	var fields []string
	var args []any
	idx := 1
	if upd.Name != nil {
		fields = append(fields, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		fields = append(fields, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if upd.Status != nil {
		fields = append(fields, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if upd.TechStack != nil {
		fields = append(fields, fmt.Sprintf("tech_stack = $%d", idx))
		args = append(args, *upd.TechStack)
		idx++
	}
	if upd.RepositoryURL != nil {
		fields = append(fields, fmt.Sprintf("repository_url = $%d", idx))
		args = append(args, *upd.RepositoryURL)
		idx++
	}
	fields = append(fields, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	tag, err := ps.DB.Exec(ctx, fmt.Sprintf("UPDATE projects SET %s WHERE id = $%d", strings.Join(fields, ", "), idx), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSchema ensures the relational tables and indexes exist.
func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := ps.DB.Exec(ctx, defaultPostgresSchema)
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (ps *PostgresStore) Close() error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	ps.DB.Close()
	return nil
}

const defaultPostgresSchema = `
CREATE TABLE IF NOT EXISTS memories (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    project_id TEXT DEFAULT 'default',
    content TEXT NOT NULL,
    memory_type VARCHAR(50) NOT NULL CHECK (memory_type IN ('explicit', 'reflection')),
    importance INTEGER DEFAULT 1,
    retrieval_count INTEGER DEFAULT 0,
    tags TEXT[],
    source_conversation_id TEXT,
    source_message_id TEXT,
    last_retrieved_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS goals (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    title VARCHAR(500) NOT NULL,
    description TEXT,
    status VARCHAR(50) DEFAULT 'active',
    priority INTEGER DEFAULT 1,
    target_date DATE,
    created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS preferences (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    preference_key VARCHAR(255) NOT NULL,
    preference_value TEXT,
    category VARCHAR(100),
    created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(user_id, preference_key)
);

CREATE TABLE IF NOT EXISTS projects (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    name VARCHAR(255) NOT NULL,
    description TEXT,
    status VARCHAR(50) DEFAULT 'active',
    tech_stack TEXT[],
    repository_url VARCHAR(500),
    created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memories_user_id_project_id ON memories(user_id, project_id);
CREATE INDEX IF NOT EXISTS idx_goals_user_id ON goals(user_id);
CREATE INDEX IF NOT EXISTS idx_preferences_user_id ON preferences(user_id);
CREATE INDEX IF NOT EXISTS idx_projects_user_id ON projects(user_id);
`

var (
	_ Store             = (*PostgresStore)(nil)
	_ SchemaInitializer = (*PostgresStore)(nil)
)
