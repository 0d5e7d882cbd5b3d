package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// LessonsColumns holds the columns for the "lessons" table.
	LessonsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "title", Type: field.TypeString, Unique: true},
		{Name: "body_md", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "validator_kind", Type: field.TypeString, Default: DefaultValidatorKind},
		{Name: "validator_config", Type: field.TypeJSON},
	}
	// LessonsTable holds the schema information for the "lessons" table.
	LessonsTable = &schema.Table{
		Name:       "lessons",
		Columns:    LessonsColumns,
		PrimaryKey: []*schema.Column{LessonsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "lesson_created_at_id", Columns: []*schema.Column{LessonsColumns[3], LessonsColumns[0]}},
		},
	}

	// ProblemsColumns holds the columns for the "problems" table.
	ProblemsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "prompt_text", Type: field.TypeString},
		{Name: "answer_text", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "validator_kind", Type: field.TypeString, Nullable: true},
		{Name: "validator_config", Type: field.TypeJSON, Nullable: true},
		{Name: "lesson_id", Type: field.TypeInt64},
	}
	// ProblemsTable holds the schema information for the "problems" table.
	ProblemsTable = &schema.Table{
		Name:       "problems",
		Columns:    ProblemsColumns,
		PrimaryKey: []*schema.Column{ProblemsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "problems_lessons_problems",
				Columns:    []*schema.Column{ProblemsColumns[6]},
				RefColumns: []*schema.Column{LessonsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "problem_lesson_id", Columns: []*schema.Column{ProblemsColumns[6]}},
		},
	}

	// UsersColumns holds the columns for the "users" table.
	UsersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "username", Type: field.TypeString, Unique: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "active_lesson_id", Type: field.TypeInt64, Nullable: true},
	}
	// UsersTable holds the schema information for the "users" table.
	UsersTable = &schema.Table{
		Name:       "users",
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "users_lessons_active_lesson",
				Columns:    []*schema.Column{UsersColumns[3]},
				RefColumns: []*schema.Column{LessonsColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{Name: "user_active_lesson_id", Columns: []*schema.Column{UsersColumns[3]}},
		},
	}

	// UserLessonsColumns holds the columns for the "user_lessons" table,
	// the ordered set of lessons a user has unlocked.
	UserLessonsColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeInt64},
		{Name: "lesson_id", Type: field.TypeInt64},
		{Name: "position", Type: field.TypeInt},
	}
	// UserLessonsTable holds the schema information for the "user_lessons" table.
	UserLessonsTable = &schema.Table{
		Name:       "user_lessons",
		Columns:    UserLessonsColumns,
		PrimaryKey: []*schema.Column{UserLessonsColumns[0], UserLessonsColumns[1]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "user_lessons_users_user",
				Columns:    []*schema.Column{UserLessonsColumns[0]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "user_lessons_lessons_lesson",
				Columns:    []*schema.Column{UserLessonsColumns[1]},
				RefColumns: []*schema.Column{LessonsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "userlesson_user_id_position", Unique: true, Columns: []*schema.Column{UserLessonsColumns[0], UserLessonsColumns[2]}},
			{Name: "userlesson_lesson_id", Columns: []*schema.Column{UserLessonsColumns[1]}},
		},
	}

	// AttemptsColumns holds the columns for the "attempts" table.
	AttemptsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "submitted_text", Type: field.TypeString},
		{Name: "is_correct", Type: field.TypeBool},
		{Name: "stage", Type: field.TypeString, Nullable: true},
		{Name: "error_reason", Type: field.TypeString, Nullable: true},
		{Name: "details", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "problem_id", Type: field.TypeInt64},
		{Name: "user_id", Type: field.TypeInt64, Nullable: true},
	}
	// AttemptsTable holds the schema information for the "attempts" table.
	AttemptsTable = &schema.Table{
		Name:       "attempts",
		Columns:    AttemptsColumns,
		PrimaryKey: []*schema.Column{AttemptsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "attempts_problems_attempts",
				Columns:    []*schema.Column{AttemptsColumns[7]},
				RefColumns: []*schema.Column{ProblemsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "attempts_users_attempts",
				Columns:    []*schema.Column{AttemptsColumns[8]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "attempt_problem_id_created_at", Columns: []*schema.Column{AttemptsColumns[7], AttemptsColumns[6]}},
			{Name: "attempt_user_id_created_at", Columns: []*schema.Column{AttemptsColumns[8], AttemptsColumns[6]}},
		},
	}

	// ReviewStatesColumns holds the columns for the "review_states" table.
	ReviewStatesColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeInt64},
		{Name: "lesson_id", Type: field.TypeInt64},
		{Name: "box", Type: field.TypeInt, Default: 1},
		{Name: "due_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime, Nullable: true},
	}
	// ReviewStatesTable holds the schema information for the "review_states" table.
	ReviewStatesTable = &schema.Table{
		Name:       "review_states",
		Columns:    ReviewStatesColumns,
		PrimaryKey: []*schema.Column{ReviewStatesColumns[0], ReviewStatesColumns[1]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "review_states_users_user",
				Columns:    []*schema.Column{ReviewStatesColumns[0]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "review_states_lessons_lesson",
				Columns:    []*schema.Column{ReviewStatesColumns[1]},
				RefColumns: []*schema.Column{LessonsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "reviewstate_user_id_due_at", Columns: []*schema.Column{ReviewStatesColumns[0], ReviewStatesColumns[3]}},
		},
	}

	// Tables holds all the tables in the schema, parents first.
	Tables = []*schema.Table{
		LessonsTable,
		ProblemsTable,
		UsersTable,
		UserLessonsTable,
		AttemptsTable,
		ReviewStatesTable,
	}
)

func init() {
	ProblemsTable.ForeignKeys[0].RefTable = LessonsTable
	UsersTable.ForeignKeys[0].RefTable = LessonsTable
	UserLessonsTable.ForeignKeys[0].RefTable = UsersTable
	UserLessonsTable.ForeignKeys[1].RefTable = LessonsTable
	AttemptsTable.ForeignKeys[0].RefTable = ProblemsTable
	AttemptsTable.ForeignKeys[1].RefTable = UsersTable
	ReviewStatesTable.ForeignKeys[0].RefTable = UsersTable
	ReviewStatesTable.ForeignKeys[1].RefTable = LessonsTable
}

// Migrate creates or upgrades the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}
