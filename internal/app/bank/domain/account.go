package domain

// Account 帳戶：每位使用者恰有一個
// Balance 是物化後的餘額，只允許 Ledger 引擎經由儲存層的原子寫入路徑變更
// 不變量：任何可觀察時點 Balance >= 0
type Account struct {
	// ID: 內部持久識別（不對外分享）
	ID int64
	// Number: 對外分享用的 10 位數帳號，建立後不可變更
	Number string
	// OwnerID: 擁有者 (User) ID，1:1
	OwnerID int64
	// Balance: 餘額（最小貨幣單位）
	Balance int64
	// CreatedAt: 建立時間 (Unix milli)
	CreatedAt int64
}
