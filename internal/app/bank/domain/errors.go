package domain

import "errors"

// 領域錯誤集中定義
// 前面幾個屬於呼叫端輸入或商業規則違反：直接回報、不重試
// 邊界層以 errors.Is 對應 status code，禁止比對錯誤字串
var (
	// ErrInvalidAmount 金額必須為正數
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrSourceAccountNotFound 轉帳來源帳戶不存在
	ErrSourceAccountNotFound = errors.New("source account not found")

	// ErrRecipientAccountNotFound 收款帳號查無帳戶
	ErrRecipientAccountNotFound = errors.New("recipient account not found")

	// ErrSelfTransfer 不可轉帳給自己的帳戶
	ErrSelfTransfer = errors.New("cannot transfer to your own account")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountAlreadyExists 該使用者已有帳戶
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrAccountNumberTaken 帳號碰撞，呼叫端應重新產生後重試
	ErrAccountNumberTaken = errors.New("account number already taken")

	// ErrNumberExhausted 帳號重試次數用盡
	ErrNumberExhausted = errors.New("account number generation exhausted")

	// ErrUserAlreadyExists 使用者已存在
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserNotFound 找不到使用者
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidPassword 密碼驗證失敗
	ErrInvalidPassword = errors.New("invalid password")

	// ErrWALWriteFailed WAL 寫入失敗，交易不得套用
	ErrWALWriteFailed = errors.New("wal write failed")

	// ErrSelectTransactionFailed 查詢交易失敗（儲存層故障）
	ErrSelectTransactionFailed = errors.New("select transaction failed")
)
