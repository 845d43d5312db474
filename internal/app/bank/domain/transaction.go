package domain

import "github.com/google/uuid"

// amount 使用 int64 最小貨幣單位（分），避免浮點誤差
// 所有金額欄位都不走 float

// TransactionType 交易類型
type TransactionType uint8

const (
	// 存款：資金由外部進入系統，From == To
	TransactionTypeDeposit TransactionType = 1
	// 轉帳：帳戶間移轉，From != To
	TransactionTypeTransfer TransactionType = 2
)

// String 回傳對外顯示用的類型名稱
func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "DEPOSIT"
	case TransactionTypeTransfer:
		return "TRANSFER"
	default:
		return "UNKNOWN"
	}
}

// TransactionStatusCompleted 目前只會寫入已完成的交易
// 失敗的操作不落任何紀錄
const TransactionStatusCompleted = "COMPLETED"

// Direction 是「從某個帳戶視角」看一筆交易的方向註記
// 只有 TRANSFER 且 viewer 是出款方才算 OUT，其餘（含 DEPOSIT）一律 IN
type Direction uint8

const (
	DirectionIn  Direction = 1
	DirectionOut Direction = 2
)

func (d Direction) String() string {
	if d == DirectionOut {
		return "OUT"
	}
	return "IN"
}

// Transaction 交易紀錄，建立後不可變更
type Transaction struct {
	// ID: 儲存層分配的遞增序號
	ID int64
	// RefID: 外部追蹤號 (UUID)，同時作為冪等鍵
	RefID uuid.UUID
	// From, To: 參與帳戶 ID；存款時兩者相同
	From int64
	To   int64
	// Amount: 金額，必為正數
	Amount int64
	// Description: 呼叫端附註，可為空
	Description string
	// RecipientRef: 收款方參考資訊，僅轉帳使用
	RecipientRef string
	// Status: 見 TransactionStatusCompleted
	Status string
	// CreatedAt: 交易時間 (Unix milli)
	CreatedAt int64
	// Type: 交易類型
	Type TransactionType
}

// GetLockIDs 回傳需要鎖定的帳戶 ID，並確保遞增順序以避免死鎖
// 兩筆反向轉帳同時進行時，雙方會以相同順序取鎖
func (t *Transaction) GetLockIDs() (ids []int64) {
	ids = make([]int64, 0, 2)
	switch t.Type {
	case TransactionTypeTransfer:
		if t.From < t.To {
			ids = append(ids, t.From, t.To)
		} else {
			ids = append(ids, t.To, t.From)
		}
	case TransactionTypeDeposit:
		ids = append(ids, t.To)
	}
	return ids
}

// DirectionFor 以 accountID 的視角計算方向
// 規則刻意不對稱：存款的 From 與 To 是同一帳戶，必須永遠讀成 IN
func (t *Transaction) DirectionFor(accountID int64) Direction {
	if t.Type == TransactionTypeTransfer && t.From == accountID {
		return DirectionOut
	}
	return DirectionIn
}

// TransactionView 是交易對呼叫端的投影：
// 附上方向註記與雙方帳號（對外顯示用，非內部 ID）
type TransactionView struct {
	Transaction
	Direction  Direction
	FromNumber string
	ToNumber   string
}
