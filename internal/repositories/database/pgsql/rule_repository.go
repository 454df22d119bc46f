package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
)

const ruleColumns = `
	rule_id, field_name, field_class, required, pattern,
	min_value, max_value, error_message, is_active,
	created_at, created_by, last_updated_at, last_updated_by`

type PgxRuleRepository struct {
	BaseRepository
}

// newPgxRuleRepository creates a new repository for validation rules.
func newPgxRuleRepository(pool *pgxpool.Pool) portsrepo.ValidationRuleRepositoryFacade {
	return &PgxRuleRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

// Ensure implementation matches interface
var _ portsrepo.ValidationRuleRepositoryFacade = (*PgxRuleRepository)(nil)

// SaveRule inserts a new validation rule.
func (r *PgxRuleRepository) SaveRule(ctx context.Context, rule domain.ValidationRule) error {
	query := `
		INSERT INTO validation_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`
	_, err := r.Pool.Exec(ctx, query,
		rule.RuleID,
		rule.FieldName,
		string(rule.FieldClass),
		rule.Required,
		rule.Pattern,
		rule.MinValue,
		rule.MaxValue,
		rule.ErrorMessage,
		rule.IsActive,
		rule.CreatedAt,
		rule.CreatedBy,
		rule.LastUpdatedAt,
		rule.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.RuleID, err)
	}
	return nil
}

// UpdateRule replaces an existing rule's configuration.
func (r *PgxRuleRepository) UpdateRule(ctx context.Context, rule domain.ValidationRule) error {
	query := `
		UPDATE validation_rules SET
			field_class = $2, required = $3, pattern = $4,
			min_value = $5, max_value = $6, error_message = $7, is_active = $8,
			last_updated_at = $9, last_updated_by = $10
		WHERE rule_id = $1;
	`
	tag, err := r.Pool.Exec(ctx, query,
		rule.RuleID,
		string(rule.FieldClass),
		rule.Required,
		rule.Pattern,
		rule.MinValue,
		rule.MaxValue,
		rule.ErrorMessage,
		rule.IsActive,
		rule.LastUpdatedAt,
		rule.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule %s: %w", rule.RuleID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FindRuleByID retrieves a single rule.
func (r *PgxRuleRepository) FindRuleByID(ctx context.Context, ruleID string) (*domain.ValidationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM validation_rules WHERE rule_id = $1;`
	rule, err := scanRule(r.Pool.QueryRow(ctx, query, ruleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find rule by id %s: %w", ruleID, err)
	}
	return rule, nil
}

// FindActiveRules retrieves the currently active rule set.
func (r *PgxRuleRepository) FindActiveRules(ctx context.Context) ([]domain.ValidationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM validation_rules WHERE is_active = TRUE ORDER BY field_name, rule_id;`
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListRules retrieves all rules, active or not.
func (r *PgxRuleRepository) ListRules(ctx context.Context) ([]domain.ValidationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM validation_rules ORDER BY field_name, rule_id;`
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

func scanRule(row pgx.Row) (*domain.ValidationRule, error) {
	var rule domain.ValidationRule
	var class string
	err := row.Scan(
		&rule.RuleID,
		&rule.FieldName,
		&class,
		&rule.Required,
		&rule.Pattern,
		&rule.MinValue,
		&rule.MaxValue,
		&rule.ErrorMessage,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.CreatedBy,
		&rule.LastUpdatedAt,
		&rule.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	rule.FieldClass = domain.FieldClass(class)
	return &rule, nil
}

func collectRules(rows pgx.Rows) ([]domain.ValidationRule, error) {
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ValidationRule, error) {
		rule, err := scanRule(row)
		if err != nil {
			return domain.ValidationRule{}, err
		}
		return *rule, nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []domain.ValidationRule{}, nil
		}
		return nil, fmt.Errorf("failed to scan rules: %w", err)
	}
	return rules, nil
}
