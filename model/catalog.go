package model

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ImportStats struct {
	Rows    int `json:"rows"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Batches int `json:"batches"`
}
