package model

import "time"

// カートの明細。
// 商品名・画像・価格は追加時点のスナップショットを必ず保存。
type CartItem struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID               int64     `gorm:"not null;index" json:"cart_id"`
	ProductID            int64     `gorm:"not null;index" json:"product_id"`
	Quantity             int64     `gorm:"not null" json:"quantity"`
	ProductNameSnapshot  string    `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	ProductImageSnapshot string    `gorm:"type:varchar(512)" json:"product_image_snapshot"`
	UnitPriceSnapshot    int64     `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	CreatedAt            time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
