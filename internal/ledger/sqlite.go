package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"SignalDesk/internal/model"
)

// SQLiteLedger persists executions and rule configuration to SQLite. It also
// implements rules.Persister.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteLedger opens (or creates) the database and runs migrations.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboard reads don't block executor writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite ledger opened: %s", dbPath)
	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS executions (
			id                  TEXT PRIMARY KEY,
			platform            TEXT,
			signal_title        TEXT,
			ticker              TEXT,
			direction           TEXT,
			option_type         TEXT,
			strike_price        TEXT,
			purchase_price      TEXT,
			input_position_size TEXT,
			status              TEXT NOT NULL,
			step_reached        INTEGER,
			error_message       TEXT,
			final_position_size INTEGER,
			filled_price        TEXT,
			final_expiration    TEXT,
			fill_attempts       INTEGER,
			execution_log       TEXT,
			created_at          INTEGER NOT NULL,
			completed_at        INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_created ON executions(created_at)`,

		`CREATE TABLE IF NOT EXISTS budget_rules (
			position     INTEGER PRIMARY KEY,
			id           TEXT,
			match        TEXT,
			budget       TEXT,
			lotto_budget TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS selling_rules (
			position          INTEGER PRIMARY KEY,
			id                TEXT,
			match             TEXT,
			sell_percent      INTEGER,
			profit_multiplier TEXT
		)`,
	}
	for _, s := range stmts {
		if _, err := l.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (l *SQLiteLedger) Record(rec *model.ExecutionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	logJSON, err := json.Marshal(rec.Log)
	if err != nil {
		return fmt.Errorf("marshal log: %w", err)
	}
	_, err = l.db.Exec(`INSERT INTO executions
		(id, platform, signal_title, ticker, direction, option_type, strike_price, purchase_price,
		 input_position_size, status, step_reached, error_message,
		 final_position_size, filled_price, final_expiration, fill_attempts,
		 execution_log, created_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Platform, rec.SignalTitle, rec.Ticker, string(rec.Direction), string(rec.OptionType),
		rec.StrikePrice.String(), rec.PurchasePrice.String(), rec.InputPositionSize.String(),
		string(rec.Status), rec.StepReached, rec.ErrorMessage,
		rec.FinalPositionSize, rec.FilledPrice.String(), rec.FinalExpiration, rec.FillAttempts,
		string(logJSON), rec.CreatedAt.Unix(), completedUnix(rec),
	)
	return err
}

// Update rewrites a pending record. Once a record is terminal the WHERE
// clause matches nothing and ErrTerminal is returned.
func (l *SQLiteLedger) Update(rec *model.ExecutionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	logJSON, err := json.Marshal(rec.Log)
	if err != nil {
		return fmt.Errorf("marshal log: %w", err)
	}
	res, err := l.db.Exec(`UPDATE executions SET
		status=?, step_reached=?, error_message=?, strike_price=?, final_position_size=?,
		filled_price=?, final_expiration=?, fill_attempts=?, execution_log=?, completed_at=?
		WHERE id=? AND status=?`,
		string(rec.Status), rec.StepReached, rec.ErrorMessage, rec.StrikePrice.String(), rec.FinalPositionSize,
		rec.FilledPrice.String(), rec.FinalExpiration, rec.FillAttempts,
		string(logJSON), completedUnix(rec),
		rec.ID, string(model.StatusPending),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var status string
		err := l.db.QueryRow(`SELECT status FROM executions WHERE id=?`, rec.ID).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrTerminal
	}
	return nil
}

func (l *SQLiteLedger) Get(id string) (*model.ExecutionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := l.db.QueryRow(selectColumns+` FROM executions WHERE id=?`, id)
	rec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

const selectColumns = `SELECT id, platform, signal_title, ticker, direction, option_type, strike_price,
	purchase_price, input_position_size, status, step_reached, error_message,
	final_position_size, filled_price, final_expiration, fill_attempts,
	execution_log, created_at, completed_at`

func (l *SQLiteLedger) Query(f QueryFilter) ([]*model.ExecutionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	query := selectColumns + ` FROM executions WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, string(f.Status))
	}
	if f.Platform != "" {
		query += ` AND platform=?`
		args = append(args, f.Platform)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) Delete(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.Exec(`DELETE FROM executions WHERE id=?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (l *SQLiteLedger) Clear() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.Exec(`DELETE FROM executions`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanExecution(row scannable) (*model.ExecutionRecord, error) {
	var (
		rec                                     model.ExecutionRecord
		direction, optType, strike, purchase    string
		inputSize, status, logJSON, filledPrice string
		errMsg, finalExp                        sql.NullString
		createdAt                               int64
		completedAt                             sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.Platform, &rec.SignalTitle, &rec.Ticker, &direction, &optType,
		&strike, &purchase, &inputSize, &status, &rec.StepReached, &errMsg,
		&rec.FinalPositionSize, &filledPrice, &finalExp, &rec.FillAttempts,
		&logJSON, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	rec.Direction = model.Direction(direction)
	rec.OptionType = model.OptionType(optType)
	rec.Status = model.ExecutionStatus(status)
	rec.StrikePrice, _ = decimal.NewFromString(strike)
	rec.PurchasePrice, _ = decimal.NewFromString(purchase)
	rec.FilledPrice, _ = decimal.NewFromString(filledPrice)
	rec.ErrorMessage = errMsg.String
	rec.FinalExpiration = finalExp.String
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	if completedAt.Valid && completedAt.Int64 > 0 {
		rec.CompletedAt = time.Unix(completedAt.Int64, 0).UTC()
	}
	if inputSize == "lotto" {
		rec.InputPositionSize = model.LottoSize()
	} else {
		var qty int
		fmt.Sscanf(inputSize, "%d", &qty)
		rec.InputPositionSize = model.FixedSize(qty)
	}
	if err := json.Unmarshal([]byte(logJSON), &rec.Log); err != nil {
		rec.Log = nil
	}
	return &rec, nil
}

func completedUnix(rec *model.ExecutionRecord) int64 {
	if rec.CompletedAt.IsZero() {
		return 0
	}
	return rec.CompletedAt.Unix()
}

// --- rules.Persister ---

func (l *SQLiteLedger) LoadBudgetRules() ([]model.BudgetRule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT id, match, budget, lotto_budget FROM budget_rules ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BudgetRule
	for rows.Next() {
		var r model.BudgetRule
		var budget, lotto string
		if err := rows.Scan(&r.ID, &r.Match, &budget, &lotto); err != nil {
			return nil, err
		}
		r.Budget, _ = decimal.NewFromString(budget)
		r.LottoBudget, _ = decimal.NewFromString(lotto)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) SaveBudgetRules(list []model.BudgetRule) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM budget_rules`); err != nil {
		return err
	}
	for i, r := range list {
		if _, err := tx.Exec(`INSERT INTO budget_rules (position, id, match, budget, lotto_budget) VALUES (?,?,?,?,?)`,
			i, r.ID, r.Match, r.Budget.String(), r.LottoBudget.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (l *SQLiteLedger) LoadSellingRules() ([]model.SellingRule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT id, match, sell_percent, profit_multiplier FROM selling_rules ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SellingRule
	for rows.Next() {
		var r model.SellingRule
		var mult string
		if err := rows.Scan(&r.ID, &r.Match, &r.SellPercent, &mult); err != nil {
			return nil, err
		}
		r.ProfitMultiplier, _ = decimal.NewFromString(mult)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) SaveSellingRules(list []model.SellingRule) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM selling_rules`); err != nil {
		return err
	}
	for i, r := range list {
		if _, err := tx.Exec(`INSERT INTO selling_rules (position, id, match, sell_percent, profit_multiplier) VALUES (?,?,?,?,?)`,
			i, r.ID, r.Match, r.SellPercent, r.ProfitMultiplier.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (l *SQLiteLedger) Close() error {
	log.Println("[INFO] closing sqlite ledger")
	return l.db.Close()
}
