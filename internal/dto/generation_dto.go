package dto

type GenerateRequest struct {
	Name string `json:"name" form:"name" validate:"required"`
}

const (
	FrameTypeText  = "text"
	FrameTypeDone  = "done"
	FrameTypeError = "error"
)

type TextFrame struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	FullText string `json:"full_text"`
}

type DoneFrame struct {
	Type     string `json:"type"`
	FullText string `json:"full_text"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
