package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names.
const (
	tableSessions   = "Sessions"
	tableModules    = "Modules"
	tableConfigs    = "Configs"
	tableConfigData = "ConfigData"
	tableTasks      = "Tasks"
	tableAttempts   = "Attempts"
	tableAnswers    = "Answers"
	tableSkillSets  = "SkillSets"
	tableSkills     = "Skills"
)

// Column names.
const (
	colSessionID     = "SessionID"
	colSessionName   = "SessionName"
	colConfigIDs     = "ConfigIDs"
	colPoints        = "Points"
	colReset         = "Reset"
	colPenaltyPoints = "PenaltyPoints"
	colTargetPoints  = "TargetPoints"
	colRepeatable    = "Repeatable"
	colTimestamp     = "Timestamp"

	colModuleID      = "ModuleID"
	colModuleName    = "ModuleName"
	colModuleVersion = "ModuleVersion"

	colConfigID     = "ConfigID"
	colConfigName   = "ConfigName"
	colConfigDataID = "ConfigDataID"
	colConfigType   = "ConfigType"
	colConfigValue  = "ConfigValue"

	colTaskID     = "TaskID"
	colQuestion   = "Question"
	colSkills     = "Skills"
	colAttemptID  = "AttemptID"
	colRunID      = "RunID"
	colUserAnswer = "UserAnswer"
	colJudgement  = "Judgement"
	colGrade      = "Grade"
	colAnswerID   = "AnswerID"
	colAnswer     = "Answer"

	colSkillSetID  = "SkillSetID"
	colSkillID     = "SkillID"
	colSkillName   = "SkillName"
	colDescription = "Description"
	colScore       = "Score"
	colVisibility  = "Visibility"
)

var (
	sessionsColumns = []*schema.Column{
		{Name: colSessionID, Type: field.TypeInt},
		{Name: colSessionName, Type: field.TypeString},
		{Name: colConfigIDs, Type: field.TypeString, Default: ""},
		{Name: colPoints, Type: field.TypeInt, Default: 0},
		{Name: colReset, Type: field.TypeBool, Default: false},
		{Name: colPenaltyPoints, Type: field.TypeInt},
		{Name: colTargetPoints, Type: field.TypeInt},
		{Name: colRepeatable, Type: field.TypeBool, Default: false},
		{Name: colTimestamp, Type: field.TypeTime},
	}
	sessionsTable = &schema.Table{
		Name:       tableSessions,
		Columns:    sessionsColumns,
		PrimaryKey: []*schema.Column{sessionsColumns[0]},
	}

	modulesColumns = []*schema.Column{
		{Name: colModuleID, Type: field.TypeInt},
		{Name: colModuleName, Type: field.TypeString, Unique: true},
		{Name: colModuleVersion, Type: field.TypeString, Default: ""},
		{Name: colTimestamp, Type: field.TypeTime},
	}
	modulesTable = &schema.Table{
		Name:       tableModules,
		Columns:    modulesColumns,
		PrimaryKey: []*schema.Column{modulesColumns[0]},
	}

	configsColumns = []*schema.Column{
		{Name: colConfigID, Type: field.TypeInt},
		{Name: colConfigName, Type: field.TypeString},
		{Name: colModuleID, Type: field.TypeInt},
	}
	configsTable = &schema.Table{
		Name:       tableConfigs,
		Columns:    configsColumns,
		PrimaryKey: []*schema.Column{configsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "configs_module_name", Unique: true, Columns: []*schema.Column{configsColumns[2], configsColumns[1]}},
		},
	}

	configDataColumns = []*schema.Column{
		{Name: colConfigDataID, Type: field.TypeInt},
		{Name: colConfigID, Type: field.TypeInt},
		{Name: colConfigName, Type: field.TypeString},
		{Name: colConfigType, Type: field.TypeString},
		{Name: colConfigValue, Type: field.TypeString},
	}
	configDataTable = &schema.Table{
		Name:       tableConfigData,
		Columns:    configDataColumns,
		PrimaryKey: []*schema.Column{configDataColumns[0]},
		Indexes: []*schema.Index{
			{Name: "configdata_config_name", Unique: true, Columns: []*schema.Column{configDataColumns[1], configDataColumns[2]}},
		},
	}

	tasksColumns = []*schema.Column{
		{Name: colTaskID, Type: field.TypeInt},
		{Name: colModuleID, Type: field.TypeInt},
		{Name: colSessionID, Type: field.TypeInt},
		{Name: colConfigID, Type: field.TypeInt},
		{Name: colQuestion, Type: field.TypeString},
		{Name: colTimestamp, Type: field.TypeTime},
		{Name: colSkills, Type: field.TypeString, Default: ""},
	}
	tasksTable = &schema.Table{
		Name:       tableTasks,
		Columns:    tasksColumns,
		PrimaryKey: []*schema.Column{tasksColumns[0]},
		Indexes: []*schema.Index{
			{Name: "tasks_session", Columns: []*schema.Column{tasksColumns[2]}},
		},
	}

	attemptsColumns = []*schema.Column{
		{Name: colAttemptID, Type: field.TypeInt},
		{Name: colTaskID, Type: field.TypeInt},
		{Name: colRunID, Type: field.TypeString, Default: ""},
		{Name: colUserAnswer, Type: field.TypeString},
		{Name: colJudgement, Type: field.TypeBool},
		{Name: colGrade, Type: field.TypeFloat64, Default: 0},
		{Name: colTimestamp, Type: field.TypeTime},
	}
	attemptsTable = &schema.Table{
		Name:       tableAttempts,
		Columns:    attemptsColumns,
		PrimaryKey: []*schema.Column{attemptsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "attempts_task", Columns: []*schema.Column{attemptsColumns[1]}},
		},
	}

	answersColumns = []*schema.Column{
		{Name: colAnswerID, Type: field.TypeInt},
		{Name: colTaskID, Type: field.TypeInt},
		{Name: colAnswer, Type: field.TypeString},
		{Name: colTimestamp, Type: field.TypeTime},
	}
	answersTable = &schema.Table{
		Name:       tableAnswers,
		Columns:    answersColumns,
		PrimaryKey: []*schema.Column{answersColumns[0]},
		Indexes: []*schema.Index{
			{Name: "answers_task", Columns: []*schema.Column{answersColumns[1]}},
		},
	}

	skillSetsColumns = []*schema.Column{
		{Name: colSkillSetID, Type: field.TypeInt},
		{Name: colModuleID, Type: field.TypeInt},
		{Name: colSessionID, Type: field.TypeInt},
	}
	skillSetsTable = &schema.Table{
		Name:       tableSkillSets,
		Columns:    skillSetsColumns,
		PrimaryKey: []*schema.Column{skillSetsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "skillsets_module_session", Unique: true, Columns: []*schema.Column{skillSetsColumns[1], skillSetsColumns[2]}},
		},
	}

	skillsColumns = []*schema.Column{
		{Name: colSkillID, Type: field.TypeInt},
		{Name: colSkillSetID, Type: field.TypeInt},
		{Name: colSkillName, Type: field.TypeString},
		{Name: colDescription, Type: field.TypeString, Default: ""},
		{Name: colScore, Type: field.TypeFloat64, Default: 0},
		{Name: colVisibility, Type: field.TypeBool, Default: true},
	}
	skillsTable = &schema.Table{
		Name:       tableSkills,
		Columns:    skillsColumns,
		PrimaryKey: []*schema.Column{skillsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "skills_set_name", Unique: true, Columns: []*schema.Column{skillsColumns[1], skillsColumns[2]}},
		},
	}

	// tables lists every table the store manages, in creation order.
	tables = []*schema.Table{
		sessionsTable,
		modulesTable,
		configsTable,
		configDataTable,
		tasksTable,
		attemptsTable,
		answersTable,
		skillSetsTable,
		skillsTable,
	}
)

// migrate creates missing tables and columns. Existing data is never dropped.
func (s *Store) migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	return m.Create(ctx, tables...)
}
