package dto

// RegisterRequest is the multipart form submitted at sign-up.
type RegisterRequest struct {
	Name     string `form:"name" json:"name" validate:"required,min=3"`
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required,min=6"`
	Country  string `form:"country" json:"country" validate:"omitempty,max=100"`
	Role     string `form:"role" json:"role" validate:"required,requestable_role"`
}

// RegisterResponse reports the created account and any pending approval task.
type RegisterResponse struct {
	Message string  `json:"message"`
	UserID  string  `json:"userId"`
	Role    string  `json:"role"`
	TaskID  *string `json:"taskId,omitempty"`
}

// CreateUserRequest is submitted by a super-admin to create an account directly.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Country  string `json:"country" validate:"omitempty,max=100"`
	Role     string `json:"role" validate:"required"`
}

// AuthorizeRequest starts the OAuth authorization code flow.
type AuthorizeRequest struct {
	Email       string `form:"email" json:"email" validate:"required,email"`
	Password    string `form:"password" json:"password" validate:"required"`
	ClientID    string `form:"client_id" json:"client_id" validate:"required"`
	RedirectURI string `form:"redirect_uri" json:"redirect_uri" validate:"required,url"`
	State       string `form:"state" json:"state"`
}

// TokenRequest exchanges an authorization code for an access token.
type TokenRequest struct {
	GrantType    string `form:"grant_type" json:"grant_type"`
	Code         string `form:"code" json:"code"`
	RedirectURI  string `form:"redirect_uri" json:"redirect_uri"`
	ClientID     string `form:"client_id" json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
}

// CreatedUser is the public projection of an admin-created account.
type CreatedUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CreateUserResponse acknowledges an admin-created account.
type CreateUserResponse struct {
	Message string      `json:"message"`
	User    CreatedUser `json:"user"`
}
