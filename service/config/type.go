package config

type IService interface {
	GetRunTimeEnv() string
	GetModeMaxShutdownTime() int
	GetLogLevel() string
	GetLogFile() string
	GetDetectionsLogFile() string
	GetTraceExporter() string

	GetHTTPAddress() string
	GetMaxUploadBytes() int64

	GetConfidenceThreshold() float32
	GetNMSThreshold() float32
	GetInferenceImageSize() int
	GetOccupiedClassName() string
	GetDefaultSeatID() string

	GetInferenceBackend() string
	GetModelPath() string
	GetModelNamesPath() string
	GetInferenceURL() string
	GetInferenceWorkers() int

	GetResultsFolder() string
	GetRunsPatterns() []string

	GetStoreBackend() string
	GetFirebaseCredPath() string
	GetFirebaseProjectID() string
	GetFilesDBFolder() string
	GetSQLitePath() string

	GetSeatsCollection() string
	GetBooksCollection() string
	GetCategoriesCollection() string
	GetErrorsCollection() string
	GetCatalogKeyField() string
	GetCatalogCategoryField() string
}
