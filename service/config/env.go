package config

import (
	"strings"

	"github.com/spf13/viper"
)

type envService struct {
	v *viper.Viper
}

// NewEnv reads configuration from environment variables. Every key falls back to the
// hardcoded default when unset.
func NewEnv() IService {
	return newEnv(viper.New())
}

func newEnv(v *viper.Viper) *envService {
	d := NewHardCoded()

	v.AutomaticEnv()
	v.SetDefault("RUN_TIME_ENV", d.GetRunTimeEnv())
	v.SetDefault("MODE_MAX_SHUTDOWN_SECS", d.GetModeMaxShutdownTime())
	v.SetDefault("LOG_LEVEL", d.GetLogLevel())
	v.SetDefault("LOG_FILE", d.GetLogFile())
	v.SetDefault("DETECTIONS_LOG", d.GetDetectionsLogFile())
	v.SetDefault("TRACE_EXPORTER", d.GetTraceExporter())
	v.SetDefault("HTTP_ADDR", d.GetHTTPAddress())
	v.SetDefault("MAX_UPLOAD_MB", d.GetMaxUploadBytes()>>20)
	v.SetDefault("CONF_THRESHOLD", d.GetConfidenceThreshold())
	v.SetDefault("NMS_THRESHOLD", d.GetNMSThreshold())
	v.SetDefault("INFERENCE_IMAGE_SIZE", d.GetInferenceImageSize())
	v.SetDefault("OCCUPIED_CLASS_NAME", d.GetOccupiedClassName())
	v.SetDefault("DEFAULT_SEAT_ID", d.GetDefaultSeatID())
	v.SetDefault("INFERENCE_BACKEND", d.GetInferenceBackend())
	v.SetDefault("MODEL_PATH", d.GetModelPath())
	v.SetDefault("MODEL_NAMES_PATH", d.GetModelNamesPath())
	v.SetDefault("INFERENCE_URL", d.GetInferenceURL())
	v.SetDefault("INFERENCE_WORKERS", d.GetInferenceWorkers())
	v.SetDefault("RESULTS_DIR", d.GetResultsFolder())
	v.SetDefault("RUNS_PATTERNS", strings.Join(d.GetRunsPatterns(), ","))
	v.SetDefault("STORE_BACKEND", d.GetStoreBackend())
	v.SetDefault("FIREBASE_CRED_PATH", d.GetFirebaseCredPath())
	v.SetDefault("FIREBASE_PROJECT_ID", d.GetFirebaseProjectID())
	v.SetDefault("FILES_DB_FOLDER", d.GetFilesDBFolder())
	v.SetDefault("SQLITE_PATH", d.GetSQLitePath())
	v.SetDefault("SEATS_COLLECTION", d.GetSeatsCollection())
	v.SetDefault("BOOKS_COLLECTION", d.GetBooksCollection())
	v.SetDefault("CATEGORIES_COLLECTION", d.GetCategoriesCollection())
	v.SetDefault("ERRORS_COLLECTION", d.GetErrorsCollection())
	v.SetDefault("CATALOG_KEY_FIELD", d.GetCatalogKeyField())
	v.SetDefault("CATALOG_CATEGORY_FIELD", d.GetCatalogCategoryField())

	return &envService{v: v}
}

func (svc *envService) GetRunTimeEnv() string {
	return svc.v.GetString("RUN_TIME_ENV")
}

func (svc *envService) GetModeMaxShutdownTime() int {
	return svc.v.GetInt("MODE_MAX_SHUTDOWN_SECS")
}

func (svc *envService) GetLogLevel() string {
	return svc.v.GetString("LOG_LEVEL")
}

func (svc *envService) GetLogFile() string {
	return svc.v.GetString("LOG_FILE")
}

func (svc *envService) GetDetectionsLogFile() string {
	return svc.v.GetString("DETECTIONS_LOG")
}

func (svc *envService) GetTraceExporter() string {
	return svc.v.GetString("TRACE_EXPORTER")
}

func (svc *envService) GetHTTPAddress() string {
	return svc.v.GetString("HTTP_ADDR")
}

func (svc *envService) GetMaxUploadBytes() int64 {
	return svc.v.GetInt64("MAX_UPLOAD_MB") << 20
}

func (svc *envService) GetConfidenceThreshold() float32 {
	return float32(svc.v.GetFloat64("CONF_THRESHOLD"))
}

func (svc *envService) GetNMSThreshold() float32 {
	return float32(svc.v.GetFloat64("NMS_THRESHOLD"))
}

func (svc *envService) GetInferenceImageSize() int {
	return svc.v.GetInt("INFERENCE_IMAGE_SIZE")
}

func (svc *envService) GetOccupiedClassName() string {
	return svc.v.GetString("OCCUPIED_CLASS_NAME")
}

func (svc *envService) GetDefaultSeatID() string {
	return svc.v.GetString("DEFAULT_SEAT_ID")
}

func (svc *envService) GetInferenceBackend() string {
	return strings.ToLower(svc.v.GetString("INFERENCE_BACKEND"))
}

func (svc *envService) GetModelPath() string {
	return svc.v.GetString("MODEL_PATH")
}

func (svc *envService) GetModelNamesPath() string {
	return svc.v.GetString("MODEL_NAMES_PATH")
}

func (svc *envService) GetInferenceURL() string {
	return svc.v.GetString("INFERENCE_URL")
}

func (svc *envService) GetInferenceWorkers() int {
	if n := svc.v.GetInt("INFERENCE_WORKERS"); n > 0 {
		return n
	}
	return 1
}

func (svc *envService) GetResultsFolder() string {
	return svc.v.GetString("RESULTS_DIR")
}

func (svc *envService) GetRunsPatterns() []string {
	patterns := []string{}
	for _, p := range strings.Split(svc.v.GetString("RUNS_PATTERNS"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

func (svc *envService) GetStoreBackend() string {
	return strings.ToLower(svc.v.GetString("STORE_BACKEND"))
}

func (svc *envService) GetFirebaseCredPath() string {
	return svc.v.GetString("FIREBASE_CRED_PATH")
}

func (svc *envService) GetFirebaseProjectID() string {
	return svc.v.GetString("FIREBASE_PROJECT_ID")
}

func (svc *envService) GetFilesDBFolder() string {
	return svc.v.GetString("FILES_DB_FOLDER")
}

func (svc *envService) GetSQLitePath() string {
	return svc.v.GetString("SQLITE_PATH")
}

func (svc *envService) GetSeatsCollection() string {
	return svc.v.GetString("SEATS_COLLECTION")
}

func (svc *envService) GetBooksCollection() string {
	return svc.v.GetString("BOOKS_COLLECTION")
}

func (svc *envService) GetCategoriesCollection() string {
	return svc.v.GetString("CATEGORIES_COLLECTION")
}

func (svc *envService) GetErrorsCollection() string {
	return svc.v.GetString("ERRORS_COLLECTION")
}

func (svc *envService) GetCatalogKeyField() string {
	return svc.v.GetString("CATALOG_KEY_FIELD")
}

func (svc *envService) GetCatalogCategoryField() string {
	return svc.v.GetString("CATALOG_CATEGORY_FIELD")
}
