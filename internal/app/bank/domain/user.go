package domain

// User 使用者：註冊時一併開立帳戶
type User struct {
	ID int64
	// Email 全系統唯一，作為登入識別
	Email string
	// PasswordHash 僅存 bcrypt 雜湊，不落明文
	PasswordHash string
	Name      string
	CreatedAt int64
}
