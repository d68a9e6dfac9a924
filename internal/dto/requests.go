package dto

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email       string  `json:"email" binding:"required,max=255"`
	Password    string  `json:"password" binding:"required"`
	DisplayName *string `json:"display_name" binding:"omitempty,max=255"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest carries the editable profile fields. Absent fields are left unchanged,
// an empty string clears the field.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=255"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,max=500"`
}

// OAuthCallbackRequest is the query (GET) or form (POST) sent back by a provider
type OAuthCallbackRequest struct {
	Code             string `form:"code"`
	State            string `form:"state"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

// ItemRequest creates or replaces an item
type ItemRequest struct {
	Name        string   `json:"name" binding:"required,max=255"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0,lte=99999999.99"`
}

// ListItemsQuery is the pagination query of GET /api/items
type ListItemsQuery struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}
