package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/assessment"
	"github.com/pydverify/backend/internal/storage/models"
	"github.com/pydverify/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessment_runs (
		id TEXT PRIMARY KEY,
		batch TEXT NOT NULL,
		total_responses INTEGER NOT NULL,
		verified_count INTEGER NOT NULL,
		likely_accurate_count INTEGER NOT NULL,
		needs_review_count INTEGER NOT NULL,
		inaccurate_count INTEGER NOT NULL,
		outdated_count INTEGER NOT NULL,
		average_confidence REAL NOT NULL,
		improvement_rate REAL NOT NULL,
		common_issues TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_finished ON assessment_runs(finished_at);

	CREATE TABLE IF NOT EXISTS assessment_items (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		query TEXT,
		accuracy_level TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		issues_count INTEGER NOT NULL,
		issues TEXT,
		changed INTEGER DEFAULT 0,
		improvement_needed INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES assessment_runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_items_run ON assessment_items(run_id);
	CREATE INDEX IF NOT EXISTS idx_items_level ON assessment_items(accuracy_level);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// RecordRun mirrors a finished assessment run and its items in one
// transaction.
func (c *Client) RecordRun(ctx context.Context, run *assessment.Run) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m := run.Metrics
	if err := insertRun(ctx, tx, &models.AssessmentRun{
		ID:                  run.ID,
		Batch:               run.Batch,
		TotalResponses:      m.TotalResponses,
		VerifiedCount:       m.VerifiedResponses,
		LikelyAccurateCount: m.LikelyAccurateResponses,
		NeedsReviewCount:    m.NeedsReviewResponses,
		InaccurateCount:     m.InaccurateResponses,
		OutdatedCount:       m.OutdatedResponses,
		AverageConfidence:   m.AverageConfidence,
		ImprovementRate:     m.ImprovementRate,
		CommonIssues:        m.CommonIssues,
		StartedAt:           run.StartedAt,
		FinishedAt:          run.FinishedAt,
	}); err != nil {
		return err
	}

	for i, d := range run.Details {
		result := d.Assessment.VerificationResult
		if err := insertItem(ctx, tx, &models.AssessmentItem{
			ID:                d.Assessment.ID,
			RunID:             run.ID,
			ItemID:            d.ID,
			Position:          i,
			Query:             d.Query,
			AccuracyLevel:     string(result.AccuracyLevel),
			ConfidenceScore:   result.ConfidenceScore,
			IssuesCount:       len(result.Issues),
			Issues:            result.IssuesFound(),
			Changed:           d.Assessment.Changed,
			ImprovementNeeded: d.Assessment.ImprovementNeeded,
			CreatedAt:         d.Timestamp,
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	logger.Info("Assessment run recorded",
		zap.String("run_id", run.ID),
		zap.Int("items", len(run.Details)),
	)
	return nil
}

func insertRun(ctx context.Context, tx *sql.Tx, run *models.AssessmentRun) error {
	query := `
		INSERT INTO assessment_runs (id, batch, total_responses, verified_count, likely_accurate_count,
			needs_review_count, inaccurate_count, outdated_count, average_confidence, improvement_rate,
			common_issues, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	issuesJSON, _ := json.Marshal(run.CommonIssues)

	_, err := tx.ExecContext(ctx,
		query,
		run.ID,
		run.Batch,
		run.TotalResponses,
		run.VerifiedCount,
		run.LikelyAccurateCount,
		run.NeedsReviewCount,
		run.InaccurateCount,
		run.OutdatedCount,
		run.AverageConfidence,
		run.ImprovementRate,
		string(issuesJSON),
		run.StartedAt.Unix(),
		run.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, item *models.AssessmentItem) error {
	query := `
		INSERT INTO assessment_items (id, run_id, item_id, position, query, accuracy_level, confidence_score,
			issues_count, issues, changed, improvement_needed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	issuesJSON, _ := json.Marshal(item.Issues)

	changed := 0
	if item.Changed {
		changed = 1
	}
	needed := 0
	if item.ImprovementNeeded {
		needed = 1
	}

	_, err := tx.ExecContext(ctx,
		query,
		item.ID,
		item.RunID,
		item.ItemID,
		item.Position,
		item.Query,
		item.AccuracyLevel,
		item.ConfidenceScore,
		item.IssuesCount,
		string(issuesJSON),
		changed,
		needed,
		item.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (c *Client) GetRecentRuns(limit int) ([]models.AssessmentRun, error) {
	query := `
		SELECT id, batch, total_responses, verified_count, likely_accurate_count, needs_review_count,
			inaccurate_count, outdated_count, average_confidence, improvement_rate, common_issues,
			started_at, finished_at
		FROM assessment_runs
		ORDER BY finished_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AssessmentRun
	for rows.Next() {
		var r models.AssessmentRun
		var issuesJSON string
		var startedAt, finishedAt int64

		err := rows.Scan(
			&r.ID,
			&r.Batch,
			&r.TotalResponses,
			&r.VerifiedCount,
			&r.LikelyAccurateCount,
			&r.NeedsReviewCount,
			&r.InaccurateCount,
			&r.OutdatedCount,
			&r.AverageConfidence,
			&r.ImprovementRate,
			&issuesJSON,
			&startedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(issuesJSON), &r.CommonIssues)
		r.StartedAt = time.Unix(startedAt, 0)
		r.FinishedAt = time.Unix(finishedAt, 0)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

func (c *Client) GetRunItems(runID string) ([]models.AssessmentItem, error) {
	query := `
		SELECT id, run_id, item_id, position, query, accuracy_level, confidence_score, issues_count,
			issues, changed, improvement_needed, created_at
		FROM assessment_items
		WHERE run_id = ?
		ORDER BY position
	`

	rows, err := c.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run items: %w", err)
	}
	defer rows.Close()

	var items []models.AssessmentItem
	for rows.Next() {
		var it models.AssessmentItem
		var issuesJSON string
		var changed, needed int
		var createdAt int64

		err := rows.Scan(
			&it.ID,
			&it.RunID,
			&it.ItemID,
			&it.Position,
			&it.Query,
			&it.AccuracyLevel,
			&it.ConfidenceScore,
			&it.IssuesCount,
			&issuesJSON,
			&changed,
			&needed,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(issuesJSON), &it.Issues)
		it.Changed = changed == 1
		it.ImprovementNeeded = needed == 1
		it.CreatedAt = time.Unix(createdAt, 0)
		items = append(items, it)
	}

	return items, rows.Err()
}

// LevelCounts returns how many mirrored items landed at each accuracy level.
func (c *Client) LevelCounts() (map[string]int, error) {
	rows, err := c.db.Query(`SELECT accuracy_level, COUNT(*) FROM assessment_items GROUP BY accuracy_level`)
	if err != nil {
		return nil, fmt.Errorf("failed to count levels: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[level] = n
	}
	return counts, rows.Err()
}
