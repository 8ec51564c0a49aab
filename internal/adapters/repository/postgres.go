package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/ratelimit"
	"github.com/okian/nilcore/internal/domain/reconsider"
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on Postgres.
type PostgresStore struct {
	pool Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS fmv_records (
	athlete_id          TEXT PRIMARY KEY,
	sport               TEXT NOT NULL DEFAULT '',
	score               DOUBLE PRECISION NOT NULL,
	doc                 JSONB NOT NULL,
	history             JSONB NOT NULL DEFAULT '[]',
	signals             JSONB NOT NULL DEFAULT '{}',
	calc_count          INTEGER NOT NULL DEFAULT 0,
	reset_date          TEXT NOT NULL,
	is_public           BOOLEAN NOT NULL DEFAULT false,
	last_notified_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE fmv_records ADD COLUMN IF NOT EXISTS history JSONB NOT NULL DEFAULT '[]';
ALTER TABLE fmv_records ADD COLUMN IF NOT EXISTS signals JSONB NOT NULL DEFAULT '{}';
CREATE INDEX IF NOT EXISTS idx_fmv_records_sport_score ON fmv_records(sport, score DESC);

CREATE TABLE IF NOT EXISTS compliance_results (
	deal_id                TEXT PRIMARY KEY,
	athlete_id             TEXT NOT NULL,
	prior_deal_id          TEXT,
	score_version          TEXT NOT NULL,
	total_score            DOUBLE PRECISION NOT NULL,
	risk_tier              TEXT NOT NULL,
	doc                    JSONB NOT NULL,
	computed_at            TIMESTAMPTZ NOT NULL,
	override_id            TEXT,
	override_officer_id    TEXT,
	override_score         DOUBLE PRECISION,
	override_tier          TEXT,
	override_justification TEXT,
	override_at            TIMESTAMPTZ,
	override_history       JSONB NOT NULL DEFAULT '[]'
);
ALTER TABLE compliance_results ADD COLUMN IF NOT EXISTS override_history JSONB NOT NULL DEFAULT '[]';
CREATE INDEX IF NOT EXISTS idx_compliance_results_athlete ON compliance_results(athlete_id);

CREATE TABLE IF NOT EXISTS responses (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	athlete_id   TEXT NOT NULL,
	subject_id   TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	responded_at TIMESTAMPTZ,
	reconsidered BOOLEAN NOT NULL DEFAULT false,
	history      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_responses_athlete ON responses(athlete_id);
`

// NewPostgres connects, pings and, unless disabled, creates the schema.
func NewPostgres(ctx context.Context, connString string, opts ...PostgresOption) (*PostgresStore, error) {
	cfg := defaultPostgresConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = cfg.maxConns
	pgxCfg.MinConns = cfg.minConns
	pgxCfg.MaxConnLifetime = cfg.maxConnLifetime
	pgxCfg.MaxConnIdleTime = cfg.maxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	s := NewPostgresWithPool(pool)
	if cfg.migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const fmvColumns = `doc, history, signals, calc_count, reset_date, is_public, last_notified_score`

func scanFMV(row pgx.Row) (*fmv.Result, error) {
	var (
		doc, history, signals []byte
		count                 int
		reset                 string
		public                bool
		notified              float64
	)
	if err := row.Scan(&doc, &history, &signals, &count, &reset, &public, &notified); err != nil {
		return nil, err
	}
	var r fmv.Result
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: decode fmv record")
	}
	r.History = nil
	if len(history) > 0 {
		if err := json.Unmarshal(history, &r.History); err != nil {
			return nil, eris.Wrap(err, "postgres: decode fmv history")
		}
	}
	if len(signals) > 0 {
		if err := json.Unmarshal(signals, &r.Signals); err != nil {
			return nil, eris.Wrap(err, "postgres: decode fmv signals")
		}
	}
	r.RateLimit = ratelimit.State{CountToday: count, ResetDate: reset}
	r.IsPublic = public
	r.LastNotifiedScore = notified
	return &r, nil
}

// GetFMV implements FMVStore.
func (s *PostgresStore) GetFMV(ctx context.Context, athleteID string) (*fmv.Result, error) {
	defer observe("get_fmv", time.Now())
	r, err := scanFMV(s.pool.QueryRow(ctx,
		`SELECT `+fmvColumns+` FROM fmv_records WHERE athlete_id = $1`, athleteID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get fmv %s", athleteID)
	}
	return r, nil
}

// appendHistory appends the one-element array in the first placeholder to
// the row's history and keeps the newest entries up to the second.
func appendHistory(entry, keep string) string {
	return `(SELECT COALESCE(jsonb_agg(e ORDER BY n), '[]'::jsonb) FROM (
		SELECT e, n FROM jsonb_array_elements(fmv_records.history || ` + entry + `::jsonb) WITH ORDINALITY AS h(e, n)
		ORDER BY n DESC LIMIT ` + keep + `) AS kept)`
}

var (
	insertFMV = `INSERT INTO fmv_records (athlete_id, sport, score, doc, history, signals, calc_count, reset_date, is_public, last_notified_score, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10)
ON CONFLICT (athlete_id) DO NOTHING
RETURNING ` + fmvColumns

	countedFMV = `UPDATE fmv_records SET sport = $2, score = $3, doc = $4, signals = $5,
	history = ` + appendHistory("$9", "$10") + `,
	calc_count = CASE WHEN reset_date = $6 THEN calc_count + 1 ELSE 1 END,
	reset_date = $6, updated_at = $7
WHERE athlete_id = $1 AND (reset_date <> $6 OR calc_count < $8)
RETURNING ` + fmvColumns

	uncountedFMV = `UPDATE fmv_records SET sport = $2, score = $3, doc = $4, signals = $5,
	history = ` + appendHistory("$8", "$9") + `,
	calc_count = CASE WHEN reset_date = $6 THEN calc_count ELSE 0 END,
	reset_date = $6, updated_at = $7
WHERE athlete_id = $1
RETURNING ` + fmvColumns
)

// SaveFMV implements FMVStore. Each mode is one statement, so the counter
// check, the history append and the write cannot interleave with another
// caller. Updates append only the newest entry of r.History; the rest of the
// history is whatever the row holds at write time.
func (s *PostgresStore) SaveFMV(ctx context.Context, r fmv.Result, mode WriteMode, limit int, now time.Time) (*fmv.Result, error) {
	defer observe("save_fmv_"+mode.String(), time.Now())

	history := r.History
	r.History = nil
	doc, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode fmv record")
	}
	signals, err := json.Marshal(r.Signals)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode fmv signals")
	}
	latest := []fmv.HistoryEntry{}
	if n := len(history); n > 0 {
		latest = history[n-1:]
	}
	entry, err := json.Marshal(latest)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode fmv history")
	}
	today := clock.UTCDate(now)

	var saved *fmv.Result
	switch mode {
	case WriteInitial:
		if history == nil {
			history = []fmv.HistoryEntry{}
		}
		full, merr := json.Marshal(history)
		if merr != nil {
			return nil, eris.Wrap(merr, "postgres: encode fmv history")
		}
		saved, err = scanFMV(s.pool.QueryRow(ctx, insertFMV,
			r.AthleteID, r.Sport, r.Score, doc, full, signals, today, r.IsPublic, r.LastNotifiedScore, now))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyExists
		}
	case WriteCounted:
		saved, err = scanFMV(s.pool.QueryRow(ctx, countedFMV,
			r.AthleteID, r.Sport, r.Score, doc, signals, today, now, limit, entry, fmv.MaxHistory))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.refusal(ctx, r.AthleteID, limit, now)
		}
	case WriteUncounted:
		saved, err = scanFMV(s.pool.QueryRow(ctx, uncountedFMV,
			r.AthleteID, r.Sport, r.Score, doc, signals, today, now, entry, fmv.MaxHistory))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
	default:
		return nil, eris.Errorf("postgres: unknown write mode %d", mode)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: save fmv %s (%s)", r.AthleteID, mode)
	}
	return saved, nil
}

// refusal explains why a counted update matched no row.
func (s *PostgresStore) refusal(ctx context.Context, athleteID string, limit int, now time.Time) error {
	var count int
	var reset string
	err := s.pool.QueryRow(ctx,
		`SELECT calc_count, reset_date FROM fmv_records WHERE athlete_id = $1`, athleteID).Scan(&count, &reset)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: read counter %s", athleteID)
	}
	return &faults.RateLimitExceeded{
		AthleteID: athleteID,
		Limit:     limit,
		Used:      ratelimit.Current(ratelimit.State{CountToday: count, ResetDate: reset}, now).CountToday,
		ResetAt:   clock.NextUTCMidnight(now),
	}
}

// SetFMVVisibility implements FMVStore.
func (s *PostgresStore) SetFMVVisibility(ctx context.Context, athleteID string, public bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fmv_records SET is_public = $2 WHERE athlete_id = $1`, athleteID, public)
	if err != nil {
		return eris.Wrapf(err, "postgres: set visibility %s", athleteID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFMVNotified implements FMVStore.
func (s *PostgresStore) MarkFMVNotified(ctx context.Context, athleteID string, score float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fmv_records SET last_notified_score = $2 WHERE athlete_id = $1`, athleteID, score)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark notified %s", athleteID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFMV implements FMVStore.
func (s *PostgresStore) ListFMV(ctx context.Context) ([]fmv.Result, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+fmvColumns+` FROM fmv_records ORDER BY athlete_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fmv")
	}
	defer rows.Close()

	var out []fmv.Result
	for rows.Next() {
		r, err := scanFMV(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan fmv")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list fmv")
}

// InsertCompliance implements ComplianceStore. The override columns start empty.
func (s *PostgresStore) InsertCompliance(ctx context.Context, r compliance.Result) error {
	defer observe("insert_compliance", time.Now())

	r.Override = nil
	r.OverrideHistory = nil
	doc, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: encode compliance result")
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO compliance_results (deal_id, athlete_id, prior_deal_id, score_version, total_score, risk_tier, doc, computed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (deal_id) DO NOTHING`,
		r.DealID, r.AthleteID, r.PriorDealID, r.ScoreVersion, r.TotalScore, string(r.RiskTier), doc, r.ComputedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert compliance %s", r.DealID)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetCompliance implements ComplianceStore.
func (s *PostgresStore) GetCompliance(ctx context.Context, dealID string) (*compliance.Result, error) {
	var (
		doc                         []byte
		oID, oOfficer, oTier, oJust *string
		oScore                      *float64
		oAt                         *time.Time
		history                     []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT doc, override_id, override_officer_id, override_score, override_tier, override_justification, override_at, override_history
FROM compliance_results WHERE deal_id = $1`, dealID).
		Scan(&doc, &oID, &oOfficer, &oScore, &oTier, &oJust, &oAt, &history)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get compliance %s", dealID)
	}

	var r compliance.Result
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: decode compliance result")
	}
	if oID != nil {
		o := compliance.Override{ID: *oID}
		if oOfficer != nil {
			o.OfficerID = *oOfficer
		}
		if oScore != nil {
			o.Score = *oScore
		}
		if oTier != nil {
			o.Tier = compliance.Tier(*oTier)
		}
		if oJust != nil {
			o.Justification = *oJust
		}
		if oAt != nil {
			o.At = oAt.UTC()
		}
		r.Override = &o
	}
	r.OverrideHistory = nil
	if len(history) > 0 {
		if err := json.Unmarshal(history, &r.OverrideHistory); err != nil {
			return nil, eris.Wrap(err, "postgres: decode override history")
		}
		if len(r.OverrideHistory) == 0 {
			r.OverrideHistory = nil
		}
	}
	return &r, nil
}

// supersedeOverride appends the row's current override, if any, to its
// history. SET expressions read the row as it was before the update.
const supersedeOverride = `CASE WHEN override_id IS NULL THEN override_history
	ELSE override_history || jsonb_build_array(jsonb_build_object(
		'id', override_id, 'officerId', override_officer_id, 'score', override_score,
		'tier', override_tier, 'justification', override_justification, 'at', override_at)) END`

// SetOverride implements ComplianceStore.
func (s *PostgresStore) SetOverride(ctx context.Context, dealID string, o compliance.Override) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE compliance_results SET override_history = `+supersedeOverride+`,
	override_id = $2, override_officer_id = $3, override_score = $4,
	override_tier = $5, override_justification = $6, override_at = $7
WHERE deal_id = $1`,
		dealID, o.ID, o.OfficerID, o.Score, string(o.Tier), o.Justification, o.At)
	if err != nil {
		return eris.Wrapf(err, "postgres: set override %s", dealID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateResponse implements ResponseStore.
func (s *PostgresStore) CreateResponse(ctx context.Context, r reconsider.Record) error {
	history, err := json.Marshal(r.History)
	if err != nil {
		return eris.Wrap(err, "postgres: encode history")
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO responses (id, kind, athlete_id, subject_id, status, responded_at, reconsidered, history)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`,
		r.ID, string(r.Kind), r.AthleteID, r.SubjectID, string(r.Status), r.RespondedAt, r.Reconsidered(), history)
	if err != nil {
		return eris.Wrapf(err, "postgres: create response %s", r.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetResponse implements ResponseStore.
func (s *PostgresStore) GetResponse(ctx context.Context, id string) (*reconsider.Record, error) {
	var (
		r       reconsider.Record
		kind    string
		status  string
		at      *time.Time
		history []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, kind, athlete_id, subject_id, status, responded_at, history FROM responses WHERE id = $1`, id).
		Scan(&r.ID, &kind, &r.AthleteID, &r.SubjectID, &status, &at, &history)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get response %s", id)
	}
	if err := json.Unmarshal(history, &r.History); err != nil {
		return nil, eris.Wrap(err, "postgres: decode history")
	}
	r.Kind = reconsider.Kind(kind)
	r.Status = reconsider.Status(status)
	if at != nil {
		utc := at.UTC()
		r.RespondedAt = &utc
	}
	return &r, nil
}

// ApplyTransition implements ResponseStore with a compare-and-swap on status
// and on the reconsidered marker.
func (s *PostgresStore) ApplyTransition(ctx context.Context, t reconsider.Transition) error {
	defer observe("apply_transition", time.Now())

	history, err := json.Marshal(t.Record.History)
	if err != nil {
		return eris.Wrap(err, "postgres: encode history")
	}
	reconsidering := t.Entry.Status == reconsider.TagReconsidered
	tag, err := s.pool.Exec(ctx,
		`UPDATE responses SET status = $2, responded_at = $3, history = $4, reconsidered = reconsidered OR $5
WHERE id = $1 AND status = $6 AND NOT (reconsidered AND $5)`,
		t.Record.ID, string(t.NewStatus), t.Record.RespondedAt, history, reconsidering, string(t.ExpectedStatus))
	if err != nil {
		return eris.Wrapf(err, "postgres: apply transition %s", t.Record.ID)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM responses WHERE id = $1`, t.Record.ID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: read response %s", t.Record.ID)
	}
	return faults.Conflict(faults.ReasonConcurrentUpdate,
		"response is "+status+", expected "+string(t.ExpectedStatus))
}
