package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"surajya/clock"
	"surajya/models"
)

// PriorityRuleRepository stores per-category base priorities. Rules are never deleted.
type PriorityRuleRepository struct {
	db    *sql.DB
	clock clock.Clock
}

// NewPriorityRuleRepository creates a new priority rule repository. clk stamps
// created_at on rules created by EnsureRule; nil means the wall clock.
func NewPriorityRuleRepository(db *sql.DB, clk clock.Clock) *PriorityRuleRepository {
	if clk == nil {
		clk = clock.Real()
	}
	return &PriorityRuleRepository{db: db, clock: clk}
}

// GetRule returns the rule for category or ErrNotFound.
func (r *PriorityRuleRepository) GetRule(ctx context.Context, category string) (*models.PriorityRule, error) {
	query := `SELECT category, base_priority, keywords, created_at FROM priority_rules WHERE category = ?`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, category))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("priority rule %q: %w", category, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get priority rule: %w", err)
	}
	return rule, nil
}

// EnsureRule returns the rule for category, creating the default rule
// (base priority 3, no keywords) on first use. Concurrent first use is safe:
// the losing insert hits the unique key and re-reads the winner's row.
func (r *PriorityRuleRepository) EnsureRule(ctx context.Context, category string) (*models.PriorityRule, error) {
	rule, err := r.GetRule(ctx, category)
	if err == nil {
		return rule, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	rule = &models.PriorityRule{
		Category:     category,
		BasePriority: models.DefaultBasePriority,
		Keywords:     []string{},
		CreatedAt:    r.clock.Now(),
	}
	err = r.insert(ctx, rule)
	if errors.Is(err, ErrDuplicate) {
		return r.GetRule(ctx, category)
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// UpsertRule creates or replaces the rule for rule.Category. created_at of an
// existing rule is preserved.
func (r *PriorityRuleRepository) UpsertRule(ctx context.Context, rule *models.PriorityRule) error {
	if rule.Category == "" {
		return errors.New("priority rule category is required")
	}
	if rule.BasePriority < 1 || rule.BasePriority > 10 {
		return fmt.Errorf("base priority %d out of range 1-10", rule.BasePriority)
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = r.clock.Now()
	}

	err := r.insert(ctx, rule)
	if !errors.Is(err, ErrDuplicate) {
		return err
	}

	keywords, err := encodeKeywords(rule.Keywords)
	if err != nil {
		return err
	}
	query := `UPDATE priority_rules SET base_priority = ?, keywords = ? WHERE category = ?`
	if _, err := execContext(ctx, r.db, query, rule.BasePriority, keywords, rule.Category); err != nil {
		return fmt.Errorf("failed to update priority rule: %w", err)
	}
	return nil
}

// ListRules returns all rules ordered by category.
func (r *PriorityRuleRepository) ListRules(ctx context.Context) ([]models.PriorityRule, error) {
	query := `SELECT category, base_priority, keywords, created_at FROM priority_rules ORDER BY category`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query priority rules: %w", err)
	}
	defer rows.Close()

	var rules []models.PriorityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan priority rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (r *PriorityRuleRepository) insert(ctx context.Context, rule *models.PriorityRule) error {
	keywords, err := encodeKeywords(rule.Keywords)
	if err != nil {
		return err
	}
	query := `INSERT INTO priority_rules (category, base_priority, keywords, created_at) VALUES (?, ?, ?, ?)`
	_, err = execContext(ctx, r.db, query, rule.Category, rule.BasePriority, keywords, rule.CreatedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("priority rule %q: %w", rule.Category, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert priority rule: %w", err)
	}
	return nil
}

func scanRule(row rowScanner) (*models.PriorityRule, error) {
	var rule models.PriorityRule
	var keywords sql.NullString
	if err := row.Scan(&rule.Category, &rule.BasePriority, &keywords, &rule.CreatedAt); err != nil {
		return nil, err
	}
	rule.Keywords = []string{}
	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &rule.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode keywords for %q: %w", rule.Category, err)
		}
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	return &rule, nil
}

func encodeKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	b, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("failed to encode keywords: %w", err)
	}
	return string(b), nil
}
