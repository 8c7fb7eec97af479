package books

type ListBooksQuery struct {
	Limit     int  `query:"limit" json:"limit,omitempty" default:"25" validate:"min=1,max=100"`
	Offset    int  `query:"offset" json:"offset,omitempty" validate:"min=0"`
	LibraryID *int `query:"library_id" json:"library_id,omitempty"`
	Deleted   bool `query:"deleted" json:"deleted,omitempty"`
}

type UpdateBookPayload struct {
	Title *string `json:"title,omitempty" validate:"omitempty,max=500"`
}
