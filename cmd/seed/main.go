package main

import (
	"flag"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/service"
)

type seedProduct struct {
	Name  string
	Price string
}

type seedVendor struct {
	Vendor   models.Vendor
	Products []seedProduct
}

func main() {
	withTokens := flag.Bool("tokens", true, "打印开发用的买家/员工令牌")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	vendors := []seedVendor{
		{
			Vendor: models.Vendor{BusinessName: "Jaipur Brassworks", OwnerName: "Meera Shah", OwnerEmail: "meera@brassworks.test", IsApproved: true},
			Products: []seedProduct{
				{Name: "Brass Table Lamp", Price: "1499.00"},
				{Name: "Hammered Brass Bowl", Price: "649.50"},
			},
		},
		{
			Vendor: models.Vendor{BusinessName: "Nilgiri Tea Co.", OwnerName: "Arjun Nair", OwnerEmail: "arjun@nilgiritea.test", IsApproved: true},
			Products: []seedProduct{
				{Name: "Frost Tea 250g", Price: "420.00"},
				{Name: "Tea Gift Tin", Price: "899.00"},
			},
		},
		{
			Vendor: models.Vendor{BusinessName: "Pending Looms", OwnerName: "Ravi Kumar", OwnerEmail: "ravi@looms.test"},
			Products: []seedProduct{
				{Name: "Handloom Throw", Price: "2100.00"},
			},
		},
	}

	var firstVendorID uint
	for _, item := range vendors {
		vendor := item.Vendor
		var existing models.Vendor
		if err := models.DB.Where("owner_email = ?", vendor.OwnerEmail).First(&existing).Error; err == nil {
			stdLog.Printf("Vendor already exists: %s", vendor.BusinessName)
			vendor = existing
		} else if err := models.DB.Create(&vendor).Error; err != nil {
			stdLog.Printf("Failed to create vendor %s: %v", vendor.BusinessName, err)
			continue
		} else {
			stdLog.Printf("Created vendor: %s (id=%d)", vendor.BusinessName, vendor.ID)
		}
		// gorm 对零值 bool 使用默认值，审核状态单独写入
		if err := models.DB.Model(&vendor).Update("is_approved", item.Vendor.IsApproved).Error; err != nil {
			stdLog.Printf("Failed to set approval for %s: %v", vendor.BusinessName, err)
		}
		if firstVendorID == 0 && item.Vendor.IsApproved {
			firstVendorID = vendor.ID
		}

		for _, p := range item.Products {
			var count int64
			models.DB.Model(&models.Product{}).Where("vendor_id = ? AND name = ?", vendor.ID, p.Name).Count(&count)
			if count > 0 {
				stdLog.Printf("Product already exists: %s", p.Name)
				continue
			}
			product := models.Product{
				VendorID: vendor.ID,
				Name:     p.Name,
				Price:    models.MustMoney(p.Price),
				IsActive: true,
			}
			if err := models.DB.Create(&product).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", p.Name, err)
				continue
			}
			stdLog.Printf("Created product: %s (id=%d, price=%s)", product.Name, product.ID, product.Price.String())
		}
	}

	if !*withTokens || cfg.Server.Mode == "release" {
		stdLog.Printf("Seed completed")
		return
	}

	// 令牌通常由外部认证服务签发，这里仅供本地联调
	auth := service.NewAuthService(cfg.UserJWT, cfg.StaffJWT)
	if token, _, err := auth.IssueBuyerToken(1001, "buyer@example.test"); err == nil {
		stdLog.Printf("Buyer token (user_id=1001): %s", token)
	}
	if token, _, err := auth.IssueStaffToken(1, constants.StaffRoleOperator, 0); err == nil {
		stdLog.Printf("Operator token: %s", token)
	}
	if firstVendorID > 0 {
		if token, _, err := auth.IssueStaffToken(2, constants.StaffRoleVendor, firstVendorID); err == nil {
			stdLog.Printf("Vendor token (vendor_id=%d): %s", firstVendorID, token)
		}
	}
	stdLog.Printf("Seed completed")
}
