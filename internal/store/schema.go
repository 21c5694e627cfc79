// Package store abstracts the persistent side of the engine behind a
// narrow Backend interface: datapoints, detections, task locks, and the
// metric registry.
package store

// Table name constants, literal per the engine's external contract.
const (
	TableDatapoints = "_dtk_datapoints"
	TableDetections = "_dtk_detections"
	TableTasks      = "_dtk_tasks"
	TableMetrics    = "_dtk_metrics"
)

// ColumnDefinition describes one column of an internal table.
type ColumnDefinition struct {
	Name     string
	Type     string
	Nullable bool
}

// TableModel describes one internal table: its name, columns, and
// primary key. It is a declaration only: memstore's EnsureTables does
// not read it, and no code validates rows against it.
type TableModel struct {
	Name       string
	Columns    []ColumnDefinition
	PrimaryKey []string
}

func datapointsTableModel() TableModel {
	return TableModel{
		Name: TableDatapoints,
		Columns: []ColumnDefinition{
			{Name: "metric_name", Type: "string"},
			{Name: "timestamp", Type: "datetime"},
			{Name: "value", Type: "float64", Nullable: true},
			{Name: "seasonality_data", Type: "json"},
			{Name: "interval_seconds", Type: "int64"},
			{Name: "seasonality_columns", Type: "string"},
			{Name: "created_at", Type: "datetime"},
		},
		PrimaryKey: []string{"metric_name", "timestamp"},
	}
}

func detectionsTableModel() TableModel {
	return TableModel{
		Name: TableDetections,
		Columns: []ColumnDefinition{
			{Name: "metric_name", Type: "string"},
			{Name: "detector_id", Type: "string"},
			{Name: "timestamp", Type: "datetime"},
			{Name: "is_anomaly", Type: "bool"},
			{Name: "confidence_lower", Type: "float64", Nullable: true},
			{Name: "confidence_upper", Type: "float64", Nullable: true},
			{Name: "value", Type: "float64", Nullable: true},
			{Name: "detector_params", Type: "json"},
			{Name: "detection_metadata", Type: "json"},
			{Name: "created_at", Type: "datetime"},
		},
		PrimaryKey: []string{"metric_name", "detector_id", "timestamp"},
	}
}

func tasksTableModel() TableModel {
	return TableModel{
		Name: TableTasks,
		Columns: []ColumnDefinition{
			{Name: "metric_name", Type: "string"},
			{Name: "detector_id", Type: "string"},
			{Name: "process_type", Type: "string"},
			{Name: "status", Type: "string"},
			{Name: "started_at", Type: "datetime"},
			{Name: "updated_at", Type: "datetime"},
			{Name: "last_processed_timestamp", Type: "datetime", Nullable: true},
			{Name: "error_message", Type: "string", Nullable: true},
			{Name: "timeout_seconds", Type: "int64"},
			{Name: "last_alert_sent", Type: "datetime", Nullable: true},
			{Name: "alert_count", Type: "int64"},
		},
		PrimaryKey: []string{"metric_name", "detector_id", "process_type"},
	}
}

func metricsTableModel() TableModel {
	return TableModel{
		Name: TableMetrics,
		Columns: []ColumnDefinition{
			{Name: "metric_name", Type: "string"},
			{Name: "path", Type: "string"},
			{Name: "interval", Type: "int64"},
			{Name: "loading_batch_size", Type: "int64"},
			{Name: "is_alert_enabled", Type: "bool"},
			{Name: "timezone", Type: "string"},
			{Name: "direction", Type: "string"},
			{Name: "consecutive_anomalies", Type: "int64"},
			{Name: "no_data_alert", Type: "bool"},
			{Name: "min_detectors", Type: "int64"},
			{Name: "enabled", Type: "bool"},
			{Name: "tags", Type: "json"},
		},
		PrimaryKey: []string{"metric_name"},
	}
}

// TableModels returns the schema of all four internal tables, in the
// order EnsureTables should create them.
func TableModels() []TableModel {
	return []TableModel{
		datapointsTableModel(),
		detectionsTableModel(),
		tasksTableModel(),
		metricsTableModel(),
	}
}
