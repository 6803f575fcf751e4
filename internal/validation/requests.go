package validation

// Request bodies accepted by the API. The msg tag is the message returned
// when any rule on the field fails; "@name" refers to a shared message.

type RegisterRequest struct {
	Name     string `json:"name" validate:"required" msg:"Invalid Name Provided."`
	Email    string `json:"email" validate:"required,email" msg:"Invalid Email Id Provided."`
	Password string `json:"password" validate:"required,password" msg:"@password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" msg:"Invalid Email Id Provided."`
	Password string `json:"password" validate:"required,password" msg:"@password"`
}

type UpdateUserRequest struct {
	Name     string `json:"name" validate:"omitempty,min=2" msg:"Invalid name"`
	Email    string `json:"email" validate:"omitempty,email" msg:"Invalid email"`
	Password string `json:"password" validate:"omitempty,password" msg:"@password"`
}

// TweetRequest bounds are in characters, not bytes.
type TweetRequest struct {
	Body string `json:"body" validate:"required,min=4,max=280" msg:"Invalid Body Provided."`
}
