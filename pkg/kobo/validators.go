package kobo

// PageQuery bounds a single page request.
type PageQuery struct {
	Limit int `query:"limit" default:"100" validate:"min=1,max=500"`
}

// ChangesQuery identifies the snapshot to diff the current one against.
type ChangesQuery struct {
	Previous string `query:"previous" validate:"required"`
	Limit    int    `query:"limit" default:"100" validate:"min=1,max=500"`
}
