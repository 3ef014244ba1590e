package models

// FallbackAuthor 既无昵称也无邮箱时使用的作者名
const FallbackAuthor = "Usuario"

// Identity 网关认证后的当前用户
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// AuthorName 昵称 > 邮箱 > "Usuario"
func (i *Identity) AuthorName() string {
	if i == nil {
		return FallbackAuthor
	}
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.Email != "" {
		return i.Email
	}
	return FallbackAuthor
}
