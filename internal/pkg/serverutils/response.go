package serverutils

type Response struct {
	Message     string      `json:"message"`
	Status      string      `json:"status"`
	Code        int         `json:"code,omitempty"`
	ErrorDetail string      `json:"error_detail,omitempty"`
	Data        interface{} `json:"data,omitempty"`
}

func SuccessResponse(status string, data interface{}) *Response {
	return &Response{
		Message: "success",
		Status:  status,
		Data:    data,
	}
}

func ErrorResponse(code int, status string) *Response {
	return &Response{
		Message: "error",
		Status:  status,
		Code:    code,
	}
}
