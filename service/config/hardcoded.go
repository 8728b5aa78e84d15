package config

type hardcodedService struct {
}

func NewHardCoded() IService {
	return &hardcodedService{}
}

func (svc *hardcodedService) GetRunTimeEnv() string {
	return "dev"
}

func (svc *hardcodedService) GetModeMaxShutdownTime() int {
	return 5
}

func (svc *hardcodedService) GetLogLevel() string {
	return "info"
}

func (svc *hardcodedService) GetLogFile() string {
	return ""
}

func (svc *hardcodedService) GetDetectionsLogFile() string {
	return "detections.log"
}

// Spans are always sampled so log lines carry trace ids. "stdout" also exports them.
func (svc *hardcodedService) GetTraceExporter() string {
	return "none"
}

func (svc *hardcodedService) GetHTTPAddress() string {
	return ":5001"
}

func (svc *hardcodedService) GetMaxUploadBytes() int64 {
	return 10 << 20
}

func (svc *hardcodedService) GetConfidenceThreshold() float32 {
	return 0.5
}

func (svc *hardcodedService) GetNMSThreshold() float32 {
	return 0.45
}

func (svc *hardcodedService) GetInferenceImageSize() int {
	return 640
}

func (svc *hardcodedService) GetOccupiedClassName() string {
	// The class name the seat model was trained with for a taken seat
	return "occupied"
}

func (svc *hardcodedService) GetDefaultSeatID() string {
	return "seat_1"
}

func (svc *hardcodedService) GetInferenceBackend() string {
	return "yolo"
}

func (svc *hardcodedService) GetModelPath() string {
	return "./models/best.onnx"
}

func (svc *hardcodedService) GetModelNamesPath() string {
	return "./models/names.txt"
}

func (svc *hardcodedService) GetInferenceURL() string {
	return "http://localhost:5000/predict"
}

func (svc *hardcodedService) GetInferenceWorkers() int {
	return 1
}

func (svc *hardcodedService) GetResultsFolder() string {
	return "./static/results"
}

func (svc *hardcodedService) GetRunsPatterns() []string {
	// Where an ultralytics style runtime drops its rendered predictions
	return []string{"runs/detect/predict*"}
}

func (svc *hardcodedService) GetStoreBackend() string {
	return "firestore"
}

func (svc *hardcodedService) GetFirebaseCredPath() string {
	return "serviceAccountKey.json"
}

func (svc *hardcodedService) GetFirebaseProjectID() string {
	return ""
}

func (svc *hardcodedService) GetFilesDBFolder() string {
	return "./data"
}

func (svc *hardcodedService) GetSQLitePath() string {
	return "./seats.db"
}

func (svc *hardcodedService) GetSeatsCollection() string {
	return "seats"
}

func (svc *hardcodedService) GetBooksCollection() string {
	return "books"
}

func (svc *hardcodedService) GetCategoriesCollection() string {
	return "categories"
}

func (svc *hardcodedService) GetErrorsCollection() string {
	return "errors"
}

func (svc *hardcodedService) GetCatalogKeyField() string {
	return "isbn"
}

func (svc *hardcodedService) GetCatalogCategoryField() string {
	return "categories"
}
