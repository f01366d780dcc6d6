// Package audit records one row per gateway request.
package audit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry represents a single audit log entry.
type Entry struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	Identity   string    `json:"identity"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Plugin     string    `json:"plugin"`
	Status     int       `json:"status"`
	DurationMs float64   `json:"duration_ms"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Timestamp  time.Time `json:"timestamp"`
}

// ListParams holds the query filters for listing audit entries.
type ListParams struct {
	Identity string
	Plugin   string
	Method   string
	FromDate string
	ToDate   string
	Limit    int
	Offset   int
}

// Recorder persists entries. Store is the Postgres implementation.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store provides insert and list operations for the request_audit table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new audit Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record inserts e, assigning an ID and timestamp when missing.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO request_audit (id, request_id, username, method, path, plugin, status, duration_ms, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.RequestID, e.Identity, e.Method, e.Path, e.Plugin, e.Status, e.DurationMs, e.IPAddress, e.UserAgent, e.Timestamp,
	)
	return err
}

// filter accumulates WHERE clauses with numbered placeholders.
type filter struct {
	clauses []string
	args    []any
}

func (f *filter) add(column, op string, value any) {
	f.args = append(f.args, value)
	f.clauses = append(f.clauses, column+" "+op+" $"+strconv.Itoa(len(f.args)))
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

func buildFilter(params ListParams) *filter {
	f := &filter{}
	if params.Identity != "" {
		f.add("username", "=", params.Identity)
	}
	if params.Plugin != "" {
		f.add("plugin", "=", params.Plugin)
	}
	if params.Method != "" {
		f.add("method", "=", strings.ToUpper(params.Method))
	}
	if params.FromDate != "" {
		f.add("created_at", ">=", params.FromDate)
	}
	if params.ToDate != "" {
		f.add("created_at", "<=", params.ToDate)
	}
	return f
}

// normalize clamps paging parameters.
func (p *ListParams) normalize() {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// List returns audit entries matching params and the total match count.
func (s *Store) List(ctx context.Context, params ListParams) ([]Entry, int, error) {
	params.normalize()
	f := buildFilter(params)

	var total int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM request_audit`+f.where(), f.args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT id, request_id, username, method, path, plugin, status, duration_ms, ip_address, user_agent, created_at
		FROM request_audit` + f.where() +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(f.args)+1) +
		` OFFSET $` + strconv.Itoa(len(f.args)+2)
	args := append(f.args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Identity, &e.Method, &e.Path, &e.Plugin, &e.Status, &e.DurationMs, &e.IPAddress, &e.UserAgent, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
