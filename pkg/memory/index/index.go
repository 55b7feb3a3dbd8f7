// Package index coordinates short-term and long-term memory per user and
// project, and renders retrieved context for prompt injection.
package index

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/engram-labs/engram/pkg/cache"
	"github.com/engram-labs/engram/pkg/concurrent"
	"github.com/engram-labs/engram/pkg/memory/longterm"
	"github.com/engram-labs/engram/pkg/memory/model"
	"github.com/engram-labs/engram/pkg/memory/shortterm"
)

// UserMemory is the per-(user, project) handle: a private short-term
// buffer plus identity fields. Long-term state lives in the shared store.
type UserMemory struct {
	UserID    int64
	ProjectID string

	longTerm *longterm.LongTermStore

	mu       sync.Mutex
	username string
	buffer   *shortterm.Store
}

func (um *UserMemory) Username() string {
	um.mu.Lock()
	defer um.mu.Unlock()
	return um.username
}

func (um *UserMemory) setUsername(name string) {
	um.mu.Lock()
	defer um.mu.Unlock()
	if name != "" {
		um.username = name
	}
}

type userKey struct {
	userID    int64
	projectID string
}

// Context is one retrieval snapshot across the four long-term read paths.
type Context struct {
	Memories    []model.Memory
	Goals       []model.Goal
	Preferences []model.Preference
	Projects    []model.Project
}

// Index tracks active user sessions and fans retrieval out across the
// long-term store. Idle handles age out of the registry; their state is
// only the short-term buffer, which is conversational and disposable.
type Index struct {
	longTerm *longterm.LongTermStore
	handles  *cache.LRU[userKey, *UserMemory]
	logger   *zap.Logger

	tokenLimit  int
	maxMessages int
}

type Option func(*Index)

// WithShortTermLimits sets the token and message caps for new buffers.
func WithShortTermLimits(tokenLimit, maxMessages int) Option {
	return func(ix *Index) {
		ix.tokenLimit = tokenLimit
		ix.maxMessages = maxMessages
	}
}

// WithHandleCapacity bounds how many user sessions stay resident, with a
// TTL after which idle sessions are dropped.
func WithHandleCapacity(capacity int, ttl time.Duration) Option {
	return func(ix *Index) {
		ix.handles = cache.NewLRU[userKey, *UserMemory](capacity, ttl)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

func New(longTerm *longterm.LongTermStore, opts ...Option) (*Index, error) {
	if longTerm == nil {
		return nil, fmt.Errorf("index: long-term store is required")
	}
	ix := &Index{
		longTerm: longTerm,
		handles:  cache.NewLRU[userKey, *UserMemory](256, time.Hour),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.handles.OnEvict(func(k userKey, um *UserMemory) {
		ix.logger.Debug("session handle evicted",
			zap.Int64("user_id", k.userID),
			zap.String("project_id", k.projectID),
			zap.Int("buffered_messages", um.bufferLen()))
	})
	return ix, nil
}

func (um *UserMemory) bufferLen() int {
	um.mu.Lock()
	defer um.mu.Unlock()
	return um.buffer.Len()
}

// User returns the session handle for (userID, projectID), creating it on
// first use. The username is refreshed in place so renames take effect
// without losing the buffer.
func (ix *Index) User(userID int64, username, projectID string) *UserMemory {
	key := userKey{userID: userID, projectID: projectID}
	um := ix.handles.GetOrCreate(key, func() *UserMemory {
		return &UserMemory{
			UserID:    userID,
			ProjectID: projectID,
			longTerm:  ix.longTerm,
			buffer:    shortterm.NewStore(ix.tokenLimit, ix.maxMessages),
		}
	})
	um.setUsername(username)
	return um
}

// RemoveUser drops the session handle and its short-term buffer. Long-term
// state is untouched.
func (ix *Index) RemoveUser(userID int64, projectID string) bool {
	return ix.handles.Remove(userKey{userID: userID, projectID: projectID})
}

// AddMessage appends a message to the user's short-term buffer.
func (ix *Index) AddMessage(userID int64, username, projectID string, m model.Message) {
	um := ix.User(userID, username, projectID)
	um.mu.Lock()
	defer um.mu.Unlock()
	um.buffer.AddMessage(m)
}

// ShortTermMessages returns a snapshot of the buffered conversation.
func (ix *Index) ShortTermMessages(userID int64, projectID string) []model.Message {
	um, ok := ix.handles.Get(userKey{userID: userID, projectID: projectID})
	if !ok {
		return nil
	}
	um.mu.Lock()
	defer um.mu.Unlock()
	return um.buffer.Messages()
}

// ShortTermContext renders the buffered conversation as prompt text.
func (ix *Index) ShortTermContext(userID int64, projectID string) string {
	um, ok := ix.handles.Get(userKey{userID: userID, projectID: projectID})
	if !ok {
		return ""
	}
	um.mu.Lock()
	defer um.mu.Unlock()
	return um.buffer.ContextString()
}

// ClearShortTerm empties the buffer without dropping the handle.
func (ix *Index) ClearShortTerm(userID int64, projectID string) {
	um, ok := ix.handles.Get(userKey{userID: userID, projectID: projectID})
	if !ok {
		return
	}
	um.mu.Lock()
	defer um.mu.Unlock()
	um.buffer.Clear()
}

// LongTerm exposes the shared durable store for direct writes.
func (ix *Index) LongTerm() *longterm.LongTermStore {
	return ix.longTerm
}

// StoreMemory persists m under the handle's user and project, overriding
// whatever scoping the caller put on it.
func (um *UserMemory) StoreMemory(ctx context.Context, m model.Memory) (model.Memory, longterm.StoreOutcome, error) {
	m.UserID = um.UserID
	m.ProjectID = um.ProjectID
	return um.longTerm.StoreMemory(ctx, m)
}

// StoreGoal records a goal for the handle's user.
func (um *UserMemory) StoreGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	g.UserID = um.UserID
	return um.longTerm.AddGoal(ctx, g)
}

// StorePreference records a preference for the handle's user.
func (um *UserMemory) StorePreference(ctx context.Context, p model.Preference) (model.Preference, error) {
	p.UserID = um.UserID
	return um.longTerm.SetPreference(ctx, p)
}

// StoreProject records a project for the handle's user.
func (um *UserMemory) StoreProject(ctx context.Context, p model.Project) (model.Project, error) {
	p.UserID = um.UserID
	return um.longTerm.AddProject(ctx, p)
}

// RetrieveContext reads memories, goals, preferences and projects
// concurrently. A failure on any branch fails the whole retrieval; the
// joined error names each branch that broke.
func (ix *Index) RetrieveContext(ctx context.Context, userID int64, projectID, query string) (Context, error) {
	var out Context
	err := concurrent.Gather(ctx,
		func(ctx context.Context) error {
			memories, err := ix.longTerm.RetrieveMemories(ctx, userID, projectID, query)
			if err != nil {
				return fmt.Errorf("retrieve memories: %w", err)
			}
			out.Memories = memories
			return nil
		},
		func(ctx context.Context) error {
			goals, err := ix.longTerm.ListGoals(ctx, userID)
			if err != nil {
				return fmt.Errorf("list goals: %w", err)
			}
			out.Goals = goals
			return nil
		},
		func(ctx context.Context) error {
			prefs, err := ix.longTerm.ListPreferences(ctx, userID)
			if err != nil {
				return fmt.Errorf("list preferences: %w", err)
			}
			out.Preferences = prefs
			return nil
		},
		func(ctx context.Context) error {
			projects, err := ix.longTerm.ListProjects(ctx, userID)
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}
			out.Projects = projects
			return nil
		},
	)
	if err != nil {
		return Context{}, err
	}
	return out, nil
}

// FormatContextForPrompt renders a Context as markdown sections. Sections
// with nothing to say are omitted; goals and projects show active ones
// only. An empty context renders as the empty string.
func FormatContextForPrompt(c Context) string {
	var b strings.Builder

	if len(c.Memories) > 0 {
		b.WriteString("## Relevant Memories\n")
		for _, m := range c.Memories {
			fmt.Fprintf(&b, "- %s (%s)\n", m.Content, m.MemoryType)
		}
	}

	active := make([]model.Goal, 0, len(c.Goals))
	for _, g := range c.Goals {
		if g.Status == model.GoalActive {
			active = append(active, g)
		}
	}
	if len(active) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Active Goals\n")
		for _, g := range active {
			if g.Description != "" {
				fmt.Fprintf(&b, "- %s: %s\n", g.Title, g.Description)
			} else {
				fmt.Fprintf(&b, "- %s\n", g.Title)
			}
		}
	}

	if len(c.Preferences) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Preferences\n")
		for _, p := range c.Preferences {
			fmt.Fprintf(&b, "- %s: %s\n", p.Key, p.Value)
		}
	}

	activeProjects := make([]model.Project, 0, len(c.Projects))
	for _, p := range c.Projects {
		if p.Status == model.ProjectActive {
			activeProjects = append(activeProjects, p)
		}
	}
	if len(activeProjects) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Projects\n")
		for _, p := range activeProjects {
			line := "- " + p.Name
			if p.Description != "" {
				line += ": " + p.Description
			}
			if len(p.TechStack) > 0 {
				line += " (Tech: " + strings.Join(p.TechStack, ", ") + ")"
			}
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}

// PromptContext retrieves and formats in one call.
func (ix *Index) PromptContext(ctx context.Context, userID int64, projectID, query string) (string, error) {
	c, err := ix.RetrieveContext(ctx, userID, projectID, query)
	if err != nil {
		return "", err
	}
	return FormatContextForPrompt(c), nil
}
