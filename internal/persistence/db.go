// Package persistence provides SQLite-based storage for runs: per-tick
// statistics, agent checkpoints, events and metadata.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/unrest/internal/agents"
	"github.com/talgya/unrest/internal/config"
	"github.com/talgya/unrest/internal/engine"
)

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
}

// Run is one recorded simulation run.
type Run struct {
	ID           string `db:"id" json:"id"`
	Seed         int64  `db:"seed" json:"seed"`
	ConfigJSON   string `db:"config_json" json:"config"`
	StartedAt    string `db:"started_at" json:"started_at"`
	FinishedTick *int64 `db:"finished_tick" json:"finished_tick,omitempty"`
}

// Config decodes the configuration the run was started with.
func (r Run) Config() (config.Config, error) {
	var cfg config.Config
	if err := json.Unmarshal([]byte(r.ConfigJSON), &cfg); err != nil {
		return cfg, fmt.Errorf("run %s config: %w", r.ID, err)
	}
	return cfg, nil
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_tick INTEGER
	);

	CREATE TABLE IF NOT EXISTS tick_stats (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		quiescent INTEGER NOT NULL,
		active INTEGER NOT NULL,
		jailed INTEGER NOT NULL,
		awaiting INTEGER NOT NULL,
		arrests INTEGER NOT NULL,
		admitted INTEGER NOT NULL,
		released INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS agent_checkpoints (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		breed INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		condition TEXT NOT NULL,
		jail_sentence INTEGER NOT NULL,
		arrest_probability REAL NOT NULL,
		PRIMARY KEY (run_id, tick, agent_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		cop_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		UNIQUE (run_id, tick, agent_id, category)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun records a new run and returns it with a fresh ID.
func (db *DB) CreateRun(cfg config.Config) (Run, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return Run{}, err
	}
	run := Run{
		ID:         uuid.NewString(),
		Seed:       cfg.Seed,
		ConfigJSON: string(cfgJSON),
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	_, err = db.conn.NamedExec(`INSERT INTO runs (id, seed, config_json, started_at)
		VALUES (:id, :seed, :config_json, :started_at)`, run)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run as finished at the given tick.
func (db *DB) FinishRun(runID string, tick uint64) error {
	_, err := db.conn.Exec("UPDATE runs SET finished_tick = ? WHERE id = ?", int64(tick), runID)
	return err
}

// GetRun loads one run.
func (db *DB) GetRun(runID string) (Run, error) {
	var run Run
	err := db.conn.Get(&run, "SELECT * FROM runs WHERE id = ?", runID)
	return run, err
}

// Runs lists every recorded run, oldest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at, id")
	return runs, err
}

// SaveStats writes per-tick statistics. Rows already stored for a tick are
// replaced.
func (db *DB) SaveStats(runID string, stats []engine.Stats) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO tick_stats
		(run_id, tick, quiescent, active, jailed, awaiting, arrests, admitted, released)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range stats {
		_, err := stmt.Exec(runID, int64(st.Tick), st.Quiescent, st.Active, st.Jailed,
			st.Awaiting, st.Arrests, st.Admitted, st.Released)
		if err != nil {
			return fmt.Errorf("insert stats for tick %d: %w", st.Tick, err)
		}
	}

	return tx.Commit()
}

// StatsHistory returns the stored statistics of a run in tick order.
func (db *DB) StatsHistory(runID string) ([]engine.Stats, error) {
	var stats []engine.Stats
	err := db.conn.Select(&stats, `SELECT tick, quiescent, active, jailed, awaiting, arrests, admitted, released
		FROM tick_stats WHERE run_id = ? ORDER BY tick`, runID)
	return stats, err
}

type checkpointRow struct {
	AgentID           int64   `db:"agent_id"`
	Breed             uint8   `db:"breed"`
	X                 int     `db:"x"`
	Y                 int     `db:"y"`
	Condition         string  `db:"condition"`
	JailSentence      int     `db:"jail_sentence"`
	ArrestProbability float64 `db:"arrest_probability"`
}

// SaveCheckpoint stores the agent reporters of a snapshot: position, breed
// and, for citizens, condition, sentence and arrest probability.
func (db *DB) SaveCheckpoint(runID string, snap *engine.Snapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agent_checkpoints WHERE run_id = ? AND tick = ?", runID, int64(snap.Tick)); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agent_checkpoints
		(run_id, tick, agent_id, breed, x, y, condition, jail_sentence, arrest_probability)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range snap.Agents {
		_, err := stmt.Exec(runID, int64(snap.Tick), int64(v.ID), uint8(v.Breed), v.X, v.Y,
			v.Condition, v.JailSentence, v.ArrestProbability)
		if err != nil {
			return fmt.Errorf("insert checkpoint agent %d: %w", v.ID, err)
		}
	}

	return tx.Commit()
}

// LoadCheckpoint returns the agents stored for a run at a tick, in ID order.
func (db *DB) LoadCheckpoint(runID string, tick uint64) ([]engine.AgentView, error) {
	var rows []checkpointRow
	err := db.conn.Select(&rows, `SELECT agent_id, breed, x, y, condition, jail_sentence, arrest_probability
		FROM agent_checkpoints WHERE run_id = ? AND tick = ? ORDER BY agent_id`, runID, int64(tick))
	if err != nil {
		return nil, err
	}

	views := make([]engine.AgentView, len(rows))
	for i, r := range rows {
		views[i] = engine.AgentView{
			ID:                agents.AgentID(r.AgentID),
			Breed:             agents.Breed(r.Breed),
			X:                 r.X,
			Y:                 r.Y,
			Condition:         r.Condition,
			JailSentence:      r.JailSentence,
			ArrestProbability: r.ArrestProbability,
		}
	}
	return views, nil
}

// SaveEvents stores events. Events already stored are skipped, so the
// in-memory event log can be saved repeatedly.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(`INSERT OR IGNORE INTO events
			(run_id, tick, agent_id, cop_id, description, category) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, int64(e.Tick), int64(e.Agent), int64(e.Cop), e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var rows []struct {
		Tick        int64  `db:"tick"`
		Agent       int64  `db:"agent_id"`
		Cop         int64  `db:"cop_id"`
		Description string `db:"description"`
		Category    string `db:"category"`
	}
	err := db.conn.Select(&rows,
		`SELECT tick, agent_id, cop_id, description, category FROM events
		WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	events := make([]engine.Event, len(rows))
	for i, r := range rows {
		events[i] = engine.Event{
			Tick:        uint64(r.Tick),
			Agent:       agents.AgentID(r.Agent),
			Cop:         agents.AgentID(r.Cop),
			Description: r.Description,
			Category:    r.Category,
		}
	}
	return events, nil
}

// SaveMeta stores a key-value pair in metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveProgress saves the statistics and events a simulation has collected
// so far, and the last tick reached.
func (db *DB) SaveProgress(runID string, sim *engine.Simulation) error {
	history := sim.History()
	slog.Debug("saving run progress", "run", runID, "ticks", len(history))

	if err := db.SaveStats(runID, history); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	if err := db.SaveEvents(runID, sim.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_tick:"+runID, fmt.Sprintf("%d", sim.CurrentTick())); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}
