package devserver

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pavelanni/mocktest/internal/model"
)

const authSessionTTL = 24 * time.Hour

// db is the backend's own sqlite database.
type db struct {
	sql *sql.DB
	now func() time.Time
}

func openDB(path string, now func() time.Time) (*db, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	d := &db{sql: conn, now: now}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *db) Close() error { return d.sql.Close() }

func (d *db) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name     TEXT NOT NULL DEFAULT '',
		dob           TEXT NOT NULL DEFAULT '',
		gender        TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS auth_sessions (
		id         TEXT PRIMARY KEY,
		user_id    INTEGER NOT NULL REFERENCES users(id),
		expires_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS otps (
		email    TEXT PRIMARY KEY,
		code     TEXT NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS mocktests (
		id               INTEGER PRIMARY KEY,
		name             TEXT NOT NULL UNIQUE,
		kind             TEXT NOT NULL,
		subject          TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS questions (
		mocktest_id INTEGER NOT NULL REFERENCES mocktests(id),
		position    INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		body        TEXT NOT NULL,
		PRIMARY KEY (mocktest_id, question_id)
	);
	CREATE TABLE IF NOT EXISTS results (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id         INTEGER NOT NULL REFERENCES users(id),
		mocktest_id     INTEGER NOT NULL REFERENCES mocktests(id),
		attempt_id      TEXT NOT NULL,
		score           REAL NOT NULL,
		total_questions INTEGER NOT NULL,
		percentage      TEXT NOT NULL,
		status          TEXT NOT NULL,
		time_taken      INTEGER NOT NULL DEFAULT 0,
		details         TEXT NOT NULL,
		submitted_at    INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS imported_files (
		name TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`)
	return err
}

// user is a backend account row.
type user struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Details      model.ProfileDetails
}

func (u user) profile() model.Profile {
	return model.Profile{ID: u.ID, Username: u.Username, Email: u.Email, Details: u.Details}
}

func (d *db) createUser(u user) (int64, error) {
	res, err := d.sql.Exec(
		`INSERT INTO users (username, email, password_hash, full_name, dob, gender, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.Details.FullName, u.Details.DOB, u.Details.Gender, d.now().UnixMilli(),
	)
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username)
	return id, nil
}

func (d *db) userWhere(cond string, arg any) (*user, error) {
	var u user
	err := d.sql.QueryRow(
		`SELECT id, username, email, password_hash, full_name, dob, gender FROM users WHERE `+cond, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Details.FullName, &u.Details.DOB, &u.Details.Gender)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *db) userByEmail(email string) (*user, error) { return d.userWhere("email = ?", email) }

func (d *db) userByUsername(name string) (*user, error) { return d.userWhere("username = ?", name) }

func (d *db) userByID(id int64) (*user, error) { return d.userWhere("id = ?", id) }

func (d *db) userCount() (int, error) {
	var n int
	err := d.sql.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (d *db) updateProfile(id int64, p model.ProfileDetails) error {
	_, err := d.sql.Exec(`UPDATE users SET full_name = ?, dob = ?, gender = ? WHERE id = ?`,
		p.FullName, p.DOB, p.Gender, id)
	return err
}

func (d *db) setPasswordHash(email, hash string) error {
	_, err := d.sql.Exec(`UPDATE users SET password_hash = ? WHERE email = ?`, hash, email)
	return err
}

func (d *db) createAuthSession(userID int64) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	_, err = d.sql.Exec(`INSERT INTO auth_sessions (id, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, d.now().Add(authSessionTTL).UnixMilli())
	if err != nil {
		return "", err
	}
	return token, nil
}

// authSessionUser returns the user owning token, or nil when the token is
// unknown or expired. Expired tokens are removed.
func (d *db) authSessionUser(token string) (*user, error) {
	var userID, expires int64
	err := d.sql.QueryRow(`SELECT user_id, expires_at FROM auth_sessions WHERE id = ?`, token).Scan(&userID, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if d.now().After(time.UnixMilli(expires)) {
		_ = d.deleteAuthSession(token)
		return nil, nil
	}
	return d.userByID(userID)
}

func (d *db) deleteAuthSession(token string) error {
	_, err := d.sql.Exec(`DELETE FROM auth_sessions WHERE id = ?`, token)
	return err
}

func (d *db) cleanupExpiredSessions() error {
	_, err := d.sql.Exec(`DELETE FROM auth_sessions WHERE expires_at < ?`, d.now().UnixMilli())
	return err
}

func (d *db) saveOTP(email, code string) error {
	_, err := d.sql.Exec(`INSERT INTO otps (email, code, verified) VALUES (?, ?, 0)
		ON CONFLICT(email) DO UPDATE SET code = excluded.code, verified = 0`, email, code)
	return err
}

func (d *db) markOTPVerified(email string) error {
	_, err := d.sql.Exec(`UPDATE otps SET verified = 1 WHERE email = ?`, email)
	return err
}

// otpVerified reports whether the pending code for email was verified.
func (d *db) otpVerified(email string) (bool, error) {
	var verified bool
	err := d.sql.QueryRow(`SELECT verified FROM otps WHERE email = ?`, email).Scan(&verified)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return verified, err
}

func (d *db) otp(email string) (string, error) {
	var code string
	err := d.sql.QueryRow(`SELECT code FROM otps WHERE email = ?`, email).Scan(&code)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return code, err
}

func (d *db) deleteOTP(email string) error {
	_, err := d.sql.Exec(`DELETE FROM otps WHERE email = ?`, email)
	return err
}

// storedTest is a mock test with its answer key.
type storedTest struct {
	model.MockTest
	Kind model.TestKind
}

func (d *db) upsertTest(t storedTest, questions []SeedQuestion) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO mocktests (id, name, kind, subject, duration_minutes) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, kind = excluded.kind,
			subject = excluded.subject, duration_minutes = excluded.duration_minutes`,
		t.ID, t.Name, t.Kind, t.Subject, t.DurationMinutes)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM questions WHERE mocktest_id = ?`, t.ID); err != nil {
		return err
	}
	for i, q := range questions {
		body, err := json.Marshal(q)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO questions (mocktest_id, position, question_id, body) VALUES (?, ?, ?, ?)`,
			t.ID, i, q.ID, string(body)); err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

func (d *db) listTests(kind model.TestKind) ([]model.MockTest, error) {
	order := "m.id"
	if kind == model.KindSubject {
		order = "m.subject, m.id"
	}
	rows, err := d.sql.Query(`SELECT m.id, m.name, m.subject, m.duration_minutes,
			(SELECT COUNT(*) FROM questions q WHERE q.mocktest_id = m.id)
		FROM mocktests m WHERE m.kind = ? ORDER BY `+order, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tests := []model.MockTest{}
	for rows.Next() {
		var t model.MockTest
		if err := rows.Scan(&t.ID, &t.Name, &t.Subject, &t.DurationMinutes, &t.TotalQuestions); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (d *db) test(id int64) (*storedTest, error) {
	var t storedTest
	err := d.sql.QueryRow(`SELECT id, name, kind, subject, duration_minutes FROM mocktests WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Kind, &t.Subject, &t.DurationMinutes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *db) questions(testID int64) ([]SeedQuestion, error) {
	rows, err := d.sql.Query(`SELECT body FROM questions WHERE mocktest_id = ? ORDER BY position`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var qs []SeedQuestion
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var q SeedQuestion
		if err := json.Unmarshal([]byte(body), &q); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// resultRow is a stored graded attempt.
type resultRow struct {
	ID             int64
	UserID         int64
	MockTestID     int64
	AttemptID      string
	Score          float64
	TotalQuestions int
	Percentage     string
	Status         string
	TimeTaken      int
	Details        []gradedAnswer
	SubmittedAt    time.Time
}

func (d *db) insertResult(r resultRow) (int64, error) {
	details, err := json.Marshal(r.Details)
	if err != nil {
		return 0, err
	}
	res, err := d.sql.Exec(`INSERT INTO results
		(user_id, mocktest_id, attempt_id, score, total_questions, percentage, status, time_taken, details, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.MockTestID, r.AttemptID, r.Score, r.TotalQuestions, r.Percentage, r.Status,
		r.TimeTaken, string(details), r.SubmittedAt.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const resultColumns = `id, user_id, mocktest_id, attempt_id, score, total_questions, percentage, status, time_taken, details, submitted_at`

func scanResult(scan func(dest ...any) error) (resultRow, error) {
	var r resultRow
	var details string
	var submitted int64
	if err := scan(&r.ID, &r.UserID, &r.MockTestID, &r.AttemptID, &r.Score, &r.TotalQuestions,
		&r.Percentage, &r.Status, &r.TimeTaken, &details, &submitted); err != nil {
		return r, err
	}
	r.SubmittedAt = time.UnixMilli(submitted).UTC()
	if err := json.Unmarshal([]byte(details), &r.Details); err != nil {
		return r, fmt.Errorf("result %d details: %w", r.ID, err)
	}
	return r, nil
}

func (d *db) result(id int64) (*resultRow, error) {
	r, err := scanResult(d.sql.QueryRow(`SELECT `+resultColumns+` FROM results WHERE id = ?`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *db) queryResults(query string, args ...any) ([]resultRow, error) {
	rows, err := d.sql.Query(`SELECT `+resultColumns+` FROM results `+query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []resultRow
	for rows.Next() {
		r, err := scanResult(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// resultsByUser returns a user's results, newest first.
func (d *db) resultsByUser(userID int64) ([]resultRow, error) {
	return d.queryResults(`WHERE user_id = ? ORDER BY submitted_at DESC, id DESC`, userID)
}

// resultsByTest returns every result of a test, best score first.
func (d *db) resultsByTest(testID int64) ([]resultRow, error) {
	return d.queryResults(`WHERE mocktest_id = ? ORDER BY score DESC, id`, testID)
}

func (d *db) importedHash(name string) (string, error) {
	var h string
	err := d.sql.QueryRow(`SELECT hash FROM imported_files WHERE name = ?`, name).Scan(&h)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return h, err
}

func (d *db) setImportedHash(name, hash string) error {
	_, err := d.sql.Exec(`INSERT INTO imported_files (name, hash) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET hash = excluded.hash`, name, hash)
	return err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
