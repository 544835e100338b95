package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"ojudge/internal/model"
	appErr "ojudge/pkg/errors"
)

// MySQLConfig holds the connection pool settings.
type MySQLConfig struct {
	// DSN format: "user:password@tcp(host:port)/dbname?parseTime=true"
	DSN string `yaml:"dsn"`

	MaxOpenConnections int           `yaml:"max_open_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `yaml:"conn_max_idle_time"`
}

// DefaultMySQLConfig returns the default pool settings.
func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		MaxOpenConnections: 25,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    5 * time.Minute,
		ConnMaxIdleTime:    10 * time.Minute,
	}
}

// MySQLStore persists the judge state in MySQL. Submissions, case
// results and contest member lists are stored as JSON columns;
// timestamps keep the wire layout so round-trips are byte exact.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a pooled connection, verifies it and creates the
// schema when missing.
func NewMySQLStore(cfg MySQLConfig) (*MySQLStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("DSN cannot be empty")
	}
	def := DefaultMySQLConfig()
	if cfg.MaxOpenConnections == 0 {
		cfg.MaxOpenConnections = def.MaxOpenConnections
	}
	if cfg.MaxIdleConnections == 0 {
		cfg.MaxIdleConnections = def.MaxIdleConnections
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = def.ConnMaxIdleTime
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewMySQLStoreWithDB wraps an existing connection, for tests.
func NewMySQLStoreWithDB(db *sql.DB) (*MySQLStore, error) {
	s := &MySQLStore{db: db}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id BIGINT NOT NULL PRIMARY KEY,
		created_time CHAR(24) NOT NULL,
		updated_time CHAR(24) NOT NULL,
		submission JSON NOT NULL,
		user_id BIGINT NOT NULL,
		contest_id BIGINT NOT NULL,
		problem_id BIGINT NOT NULL,
		state VARCHAR(16) NOT NULL,
		result VARCHAR(32) NOT NULL,
		score DOUBLE NOT NULL,
		cases JSON NOT NULL,
		KEY jobs_user_idx (user_id),
		KEY jobs_contest_idx (contest_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		UNIQUE KEY users_name_uq (name)
	)`,
	`CREATE TABLE IF NOT EXISTS contests (
		id BIGINT NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		from_time CHAR(24) NOT NULL,
		to_time CHAR(24) NOT NULL,
		problem_ids JSON NOT NULL,
		user_ids JSON NOT NULL,
		submission_limit INT NOT NULL
	)`,
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
	}
	return s.seedRoot(ctx)
}

func (s *MySQLStore) seedRoot(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT IGNORE INTO users (id, name) VALUES (0, ?)", RootUserName)
	if err != nil {
		return fmt.Errorf("seed root user failed: %w", err)
	}
	return nil
}

const jobColumns = "id, created_time, updated_time, submission, state, result, score, cases"

func (s *MySQLStore) CreateJob(ctx context.Context, sub model.Submission, caseCount int) (*model.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id)+1, 0) FROM jobs FOR UPDATE").Scan(&next); err != nil {
		return nil, fmt.Errorf("allocate job id failed: %w", err)
	}

	job := model.NewQueuedJob(next, sub, caseCount, model.Now())
	subJSON, err := json.Marshal(job.Submission)
	if err != nil {
		return nil, fmt.Errorf("encode submission failed: %w", err)
	}
	casesJSON, err := json.Marshal(job.Cases)
	if err != nil {
		return nil, fmt.Errorf("encode cases failed: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (id, created_time, updated_time, submission, user_id, contest_id, problem_id, state, result, score, cases)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.CreatedTime.String(), job.UpdatedTime.String(), subJSON,
		sub.UserID, sub.ContestID, sub.ProblemID,
		job.State, job.Result, job.Score, casesJSON)
	if err != nil {
		return nil, fmt.Errorf("insert job failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}
	return job, nil
}

func (s *MySQLStore) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErr.Newf(appErr.JobNotFound, "Job %d not found.", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query job failed: %w", err)
	}
	return job, nil
}

func (s *MySQLStore) UpdateJob(ctx context.Context, job *model.Job) error {
	subJSON, err := json.Marshal(job.Submission)
	if err != nil {
		return fmt.Errorf("encode submission failed: %w", err)
	}
	casesJSON, err := json.Marshal(job.Cases)
	if err != nil {
		return fmt.Errorf("encode cases failed: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET updated_time = ?, submission = ?, user_id = ?, contest_id = ?, problem_id = ?,
		 state = ?, result = ?, score = ?, cases = ? WHERE id = ?`,
		job.UpdatedTime.String(), subJSON,
		job.Submission.UserID, job.Submission.ContestID, job.Submission.ProblemID,
		job.State, job.Result, job.Score, casesJSON, job.ID)
	if err != nil {
		return fmt.Errorf("update job failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected failed: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetJob(ctx, job.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) ListJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query jobs failed: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job failed: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs failed: %w", err)
	}
	return jobs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.Job, error) {
	var job model.Job
	var created, updated, state, result string
	var subJSON, casesJSON []byte
	if err := row.Scan(&job.ID, &created, &updated, &subJSON, &state, &result, &job.Score, &casesJSON); err != nil {
		return nil, err
	}
	ct, err := time.Parse(model.TimeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_time: %w", err)
	}
	ut, err := time.Parse(model.TimeLayout, updated)
	if err != nil {
		return nil, fmt.Errorf("parse updated_time: %w", err)
	}
	job.CreatedTime = model.At(ct)
	job.UpdatedTime = model.At(ut)
	job.State = model.JobState(state)
	job.Result = model.Verdict(result)
	if err := json.Unmarshal(subJSON, &job.Submission); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	if err := json.Unmarshal(casesJSON, &job.Cases); err != nil {
		return nil, fmt.Errorf("decode cases: %w", err)
	}
	return &job, nil
}

func (s *MySQLStore) SaveUser(ctx context.Context, user model.User) (model.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, fmt.Errorf("begin transaction failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var clash int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM users WHERE name = ?", user.Name).Scan(&clash)
	switch {
	case err == nil:
		if user.ID == nil || clash != *user.ID {
			return model.User{}, appErr.Newf(appErr.UserNameTaken, "User name '%s' already exists.", user.Name)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return model.User{}, fmt.Errorf("query user by name failed: %w", err)
	}

	if user.ID == nil {
		var next int64
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(id)+1, 0) FROM users FOR UPDATE").Scan(&next); err != nil {
			return model.User{}, fmt.Errorf("allocate user id failed: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, name) VALUES (?, ?)", next, user.Name); err != nil {
			return model.User{}, fmt.Errorf("insert user failed: %w", err)
		}
		user.ID = &next
	} else {
		res, err := tx.ExecContext(ctx,
			"UPDATE users SET name = ? WHERE id = ?", user.Name, *user.ID)
		if err != nil {
			return model.User{}, fmt.Errorf("update user failed: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return model.User{}, fmt.Errorf("get rows affected failed: %w", err)
		}
		if affected == 0 {
			var exists int64
			if err := tx.QueryRowContext(ctx,
				"SELECT id FROM users WHERE id = ?", *user.ID).Scan(&exists); errors.Is(err, sql.ErrNoRows) {
				return model.User{}, appErr.Newf(appErr.UserNotFound, "User %d not found.", *user.ID)
			} else if err != nil {
				return model.User{}, fmt.Errorf("query user failed: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return model.User{}, fmt.Errorf("commit failed: %w", err)
	}
	return user, nil
}

func (s *MySQLStore) GetUser(ctx context.Context, id int64) (model.User, error) {
	var user model.User
	var uid int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name FROM users WHERE id = ?", id).Scan(&uid, &user.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, appErr.Newf(appErr.UserNotFound, "User %d not found.", id)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("query user failed: %w", err)
	}
	user.ID = &uid
	return user, nil
}

func (s *MySQLStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query users failed: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		var uid int64
		if err := rows.Scan(&uid, &user.Name); err != nil {
			return nil, fmt.Errorf("scan user failed: %w", err)
		}
		user.ID = &uid
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users failed: %w", err)
	}
	return users, nil
}

func (s *MySQLStore) CreateContest(ctx context.Context, contest model.Contest) (model.Contest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Contest{}, fmt.Errorf("begin transaction failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id)+1, 1) FROM contests FOR UPDATE").Scan(&next); err != nil {
		return model.Contest{}, fmt.Errorf("allocate contest id failed: %w", err)
	}
	contest.ID = next

	problemIDs, userIDs, err := encodeContestMembers(contest)
	if err != nil {
		return model.Contest{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO contests (id, name, from_time, to_time, problem_ids, user_ids, submission_limit)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		contest.ID, contest.Name, contest.From.String(), contest.To.String(),
		problemIDs, userIDs, contest.SubmissionLimit)
	if err != nil {
		return model.Contest{}, fmt.Errorf("insert contest failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Contest{}, fmt.Errorf("commit failed: %w", err)
	}
	return contest, nil
}

func (s *MySQLStore) UpdateContest(ctx context.Context, contest model.Contest) error {
	problemIDs, userIDs, err := encodeContestMembers(contest)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE contests SET name = ?, from_time = ?, to_time = ?, problem_ids = ?, user_ids = ?, submission_limit = ?
		 WHERE id = ?`,
		contest.Name, contest.From.String(), contest.To.String(),
		problemIDs, userIDs, contest.SubmissionLimit, contest.ID)
	if err != nil {
		return fmt.Errorf("update contest failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected failed: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetContest(ctx, contest.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) GetContest(ctx context.Context, id int64) (model.Contest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, from_time, to_time, problem_ids, user_ids, submission_limit FROM contests WHERE id = ?", id)
	contest, err := scanContest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contest{}, appErr.Newf(appErr.ContestNotFound, "Contest %d not found.", id)
	}
	if err != nil {
		return model.Contest{}, fmt.Errorf("query contest failed: %w", err)
	}
	return contest, nil
}

func (s *MySQLStore) ListContests(ctx context.Context) ([]model.Contest, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, from_time, to_time, problem_ids, user_ids, submission_limit FROM contests ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query contests failed: %w", err)
	}
	defer rows.Close()

	var contests []model.Contest
	for rows.Next() {
		contest, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contest failed: %w", err)
		}
		contests = append(contests, contest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contests failed: %w", err)
	}
	return contests, nil
}

func encodeContestMembers(contest model.Contest) ([]byte, []byte, error) {
	problemIDs, err := json.Marshal(orEmpty(contest.ProblemIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("encode problem ids failed: %w", err)
	}
	userIDs, err := json.Marshal(orEmpty(contest.UserIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("encode user ids failed: %w", err)
	}
	return problemIDs, userIDs, nil
}

func orEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func scanContest(row scanner) (model.Contest, error) {
	var contest model.Contest
	var from, to string
	var problemIDs, userIDs []byte
	err := row.Scan(&contest.ID, &contest.Name, &from, &to, &problemIDs, &userIDs, &contest.SubmissionLimit)
	if err != nil {
		return model.Contest{}, err
	}
	ft, err := time.Parse(model.TimeLayout, from)
	if err != nil {
		return model.Contest{}, fmt.Errorf("parse from_time: %w", err)
	}
	tt, err := time.Parse(model.TimeLayout, to)
	if err != nil {
		return model.Contest{}, fmt.Errorf("parse to_time: %w", err)
	}
	contest.From = model.At(ft)
	contest.To = model.At(tt)
	if err := json.Unmarshal(problemIDs, &contest.ProblemIDs); err != nil {
		return model.Contest{}, fmt.Errorf("decode problem ids: %w", err)
	}
	if err := json.Unmarshal(userIDs, &contest.UserIDs); err != nil {
		return model.Contest{}, fmt.Errorf("decode user ids: %w", err)
	}
	return contest, nil
}

func (s *MySQLStore) Flush(ctx context.Context) error {
	for _, table := range []string{"jobs", "contests", "users"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("flush %s failed: %w", table, err)
		}
	}
	return s.seedRoot(ctx)
}

func (s *MySQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}
