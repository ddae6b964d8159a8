package api

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

type ListResponse struct {
	Items    interface{} `json:"items"`
	Total    int         `json:"total" example:"42"`
	Page     int         `json:"page" example:"1"`
	PageSize int         `json:"page_size" example:"20"`
}

// Page normalizes 1-based page/size query values.
func Page(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
