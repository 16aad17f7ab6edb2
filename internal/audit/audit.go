// Package audit checks that every stored reputation score can be explained
// by the user's ledger entries.
package audit

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/reputation"
)

// Finding reasons.
const (
	ReasonBrokenChain = "broken_chain"    // an entry does not start where the previous one ended
	ReasonBadClamp    = "bad_clamp"       // score_after != max(0, score_before + amount)
	ReasonDrift       = "drift"           // stored score differs from the last entry
	ReasonUntracked   = "untracked_score" // non-zero score with no entries
)

type Finding struct {
	UserID   int    `json:"user_id"`
	EntryID  int    `json:"entry_id,omitempty"`
	Stored   int    `json:"stored"`
	Expected int    `json:"expected"`
	Reason   string `json:"reason"`
}

type Report struct {
	Users    int       `json:"users"`
	Entries  int       `json:"entries"`
	Findings []Finding `json:"findings"`
}

// Clean reports whether no finding was raised.
func (r Report) Clean() bool {
	return len(r.Findings) == 0
}

type userRow struct {
	ID     int `db:"id"`
	Points int `db:"reputation_points"`
}

type entryRow struct {
	ID          int `db:"id"`
	UserID      int `db:"user_id"`
	Amount      int `db:"amount"`
	ScoreBefore int `db:"score_before"`
	ScoreAfter  int `db:"score_after"`
}

// Auditor runs read-only queries over the connection pool of a Database.
type Auditor struct {
	db *sqlx.DB
}

func New(d *database.Database) (*Auditor, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting database instance: %w", err)
	}
	driverName := "postgres"
	if d.Driver() == database.DriverSQLite {
		driverName = "sqlite3"
	}
	return &Auditor{db: sqlx.NewDb(sqlDB, driverName)}, nil
}

// Run audits every user.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	var users []userRow
	if err := a.db.SelectContext(ctx, &users, `SELECT id, reputation_points FROM users ORDER BY id`); err != nil {
		return Report{}, fmt.Errorf("load users: %w", err)
	}

	rows, err := a.db.QueryxContext(ctx, `
		SELECT id, user_id, amount, score_before, score_after
		FROM reputation_entries
		ORDER BY user_id, id`)
	if err != nil {
		return Report{}, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	byUser := make(map[int][]entryRow)
	report := Report{Users: len(users)}
	for rows.Next() {
		var e entryRow
		if err := rows.StructScan(&e); err != nil {
			return Report{}, fmt.Errorf("scan entry: %w", err)
		}
		byUser[e.UserID] = append(byUser[e.UserID], e)
		report.Entries++
	}
	if err := rows.Err(); err != nil {
		return Report{}, fmt.Errorf("iterate entries: %w", err)
	}

	report.Findings = []Finding{}
	for _, u := range users {
		report.Findings = append(report.Findings, check(u, byUser[u.ID])...)
	}
	return report, nil
}

// User audits a single user.
func (a *Auditor) User(ctx context.Context, userID int) ([]Finding, error) {
	var u userRow
	err := a.db.GetContext(ctx, &u, a.db.Rebind(`SELECT id, reputation_points FROM users WHERE id = ?`), userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	var entries []entryRow
	err = a.db.SelectContext(ctx, &entries, a.db.Rebind(`
		SELECT id, user_id, amount, score_before, score_after
		FROM reputation_entries
		WHERE user_id = ?
		ORDER BY id`), userID)
	if err != nil {
		return nil, fmt.Errorf("load entries of user %d: %w", userID, err)
	}
	return check(u, entries), nil
}

// check folds entries in id order. Each entry must continue from the
// previous one and respect the clamp, and the last one must match the
// stored score.
func check(u userRow, entries []entryRow) []Finding {
	var findings []Finding
	if len(entries) == 0 {
		if u.Points != 0 {
			findings = append(findings, Finding{UserID: u.ID, Stored: u.Points, Expected: 0, Reason: ReasonUntracked})
		}
		return findings
	}

	running := entries[0].ScoreBefore
	for _, e := range entries {
		if e.ScoreBefore != running {
			findings = append(findings, Finding{UserID: u.ID, EntryID: e.ID, Stored: e.ScoreBefore, Expected: running, Reason: ReasonBrokenChain})
		}
		want := reputation.Clamp(e.ScoreBefore + e.Amount)
		if e.ScoreAfter != want {
			findings = append(findings, Finding{UserID: u.ID, EntryID: e.ID, Stored: e.ScoreAfter, Expected: want, Reason: ReasonBadClamp})
		}
		running = e.ScoreAfter
	}

	if u.Points != running {
		findings = append(findings, Finding{UserID: u.ID, Stored: u.Points, Expected: running, Reason: ReasonDrift})
	}
	return findings
}
