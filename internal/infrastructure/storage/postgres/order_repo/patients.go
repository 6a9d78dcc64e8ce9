package order_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
	"dentallab/internal/domain/orders"
	"dentallab/internal/infrastructure/storage/postgres"
)

var patientColumns = postgres.ExtractDBColumns[orders.Patient]()

// PatientRepo implements orders.PatientRepository.
type PatientRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewPatientRepo creates the patient repository.
func NewPatientRepo(txm *postgres.TxManager) *PatientRepo {
	return &PatientRepo{txm: txm, builder: postgres.Builder()}
}

func (r *PatientRepo) Get(ctx context.Context, orgID, patientID uuid.UUID) (*orders.Patient, error) {
	sql, args, err := r.builder.Select(patientColumns...).From("patients").
		Where(squirrel.Eq{"organization_id": orgID, "id": patientID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var p orders.Patient
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("patient", patientID)
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &p, nil
}

func (r *PatientRepo) Create(ctx context.Context, p *orders.Patient) error {
	sql, args, err := r.builder.Insert("patients").SetMap(postgres.StructToMap(p)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert patient", err)
	}
	return nil
}

// StageTemplateRepo implements orders.StageTemplateSource.
type StageTemplateRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewStageTemplateRepo creates the stage template reader.
func NewStageTemplateRepo(txm *postgres.TxManager) *StageTemplateRepo {
	return &StageTemplateRepo{txm: txm, builder: postgres.Builder()}
}

// StageTemplate returns the organization's active stages by position.
// An empty result makes new orders use the default pipeline.
func (r *StageTemplateRepo) StageTemplate(ctx context.Context, orgID uuid.UUID) ([]orders.StageTemplate, error) {
	sql, args, err := r.builder.Select("name", "position").From("stage_templates").
		Where(squirrel.Eq{"organization_id": orgID, "is_active": true}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var tpl []orders.StageTemplate
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &tpl, sql, args...); err != nil {
		return nil, fmt.Errorf("select stage template: %w", err)
	}
	return tpl, nil
}

var (
	_ orders.PatientRepository   = (*PatientRepo)(nil)
	_ orders.StageTemplateSource = (*StageTemplateRepo)(nil)
)
