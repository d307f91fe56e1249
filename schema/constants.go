package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of CLI output.
	OutputMode string

	// DatabaseBackend represents the database backend for the relational and archive stores.
	DatabaseBackend string

	// Service is the git hosting provider a repository lives on.
	Service string

	// CommitState is the processing state of an uploaded commit.
	CommitState string

	// TrialStatus is the derived trial state of an organization.
	TrialStatus string

	// LineType tags a coverage line as plain, branch or method.
	LineType string

	// MeasurementName names a timeseries dataset.
	MeasurementName string

	// Projection selects which commit field set is serialized.
	Projection string

	// PullState is the state of a pull request on the provider.
	PullState string
)

// All output modes supported.
const (
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All provider services supported.
const (
	GitHub    Service = "github"
	GitLab    Service = "gitlab"
	Bitbucket Service = "bitbucket"
	Local     Service = "local"
)

// All commit states.
const (
	CommitPending  CommitState = "pending"
	CommitComplete CommitState = "complete"
	CommitError    CommitState = "error"
)

// All trial states. The values match the GraphQL enum names.
const (
	TrialNotStarted TrialStatus = "NOT_STARTED"
	TrialOngoing    TrialStatus = "ONGOING"
	TrialExpired    TrialStatus = "EXPIRED"
)

// All line types. A plain line has an empty tag.
const (
	LinePlain  LineType = ""
	LineBranch LineType = "b"
	LineMethod LineType = "m"
)

// All measurement names.
const (
	CoverageMeasurement          MeasurementName = "coverage"
	FlagCoverageMeasurement      MeasurementName = "flag_coverage"
	ComponentCoverageMeasurement MeasurementName = "component_coverage"
)

// All commit projections.
const (
	CommitProjection          Projection = "commit" // default
	ReportProjection          Projection = "report"
	FileLevelReportProjection Projection = "file-report"
	SourceProjection          Projection = "src"
	ParentProjection          Projection = "parent"
)

// All pull request states.
const (
	PullOpen   PullState = "open"
	PullMerged PullState = "merged"
	PullClosed PullState = "closed"
)

// TrialDaysLength is the length of a trial in days.
const TrialDaysLength = 14

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut: {},
	JSONOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidServices lists all valid provider services.
var ValidServices = map[Service]struct{}{
	GitHub:    {},
	GitLab:    {},
	Bitbucket: {},
	Local:     {},
}

// ValidProjections lists all valid commit projections.
var ValidProjections = map[Projection]struct{}{
	CommitProjection:          {},
	ReportProjection:          {},
	FileLevelReportProjection: {},
	SourceProjection:          {},
	ParentProjection:          {},
}

// ValidMeasurementNames lists all valid measurement datasets.
var ValidMeasurementNames = map[MeasurementName]struct{}{
	CoverageMeasurement:          {},
	FlagCoverageMeasurement:      {},
	ComponentCoverageMeasurement: {},
}

// ValidPullStates lists all valid pull request states.
var ValidPullStates = map[PullState]struct{}{
	PullOpen:   {},
	PullMerged: {},
	PullClosed: {},
}
