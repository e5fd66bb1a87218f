package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheet       = "Orders"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportLinkTTL     = 15 * time.Minute
	maxExportedOrders = 10000
)

var exportHeader = []interface{}{
	"Order Number", "Created At", "Status", "Customer", "Email", "Guest",
	"Payment", "Items", "Total", "Country", "City", "Carrier", "Tracking",
}

// ArchiveStorage keeps generated exports out of process.
type ArchiveStorage interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type ExportResult struct {
	Filename    string `json:"filename"`
	ContentType string `json:"-"`
	Data        []byte `json:"-"`
	Rows        int    `json:"rows"`
	DownloadURL string `json:"download_url,omitempty"`
}

type ExportService interface {
	// ExportOrders renders matching orders to xlsx. With archive storage the
	// workbook is uploaded and DownloadURL is set.
	ExportOrders(ctx context.Context, filter repository.OrderFilter) (*ExportResult, error)
}

type exportService struct {
	orderRepo repository.OrderRepository
	archive   ArchiveStorage
	prefix    string
}

// NewExportService accepts a nil archive, in which case exports are only returned inline.
func NewExportService(orderRepo repository.OrderRepository, archive ArchiveStorage, prefix string) ExportService {
	return &exportService{
		orderRepo: orderRepo,
		archive:   archive,
		prefix:    prefix,
	}
}

func (s *exportService) ExportOrders(ctx context.Context, filter repository.OrderFilter) (*ExportResult, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	filter.Limit = maxExportedOrders
	filter.Offset = 0

	orders, _, err := s.orderRepo.List(filter)
	if err != nil {
		return nil, err
	}

	data, err := renderOrdersWorkbook(orders)
	if err != nil {
		logger.Error("Failed to render order export", err)
		return nil, err
	}

	result := &ExportResult{
		Filename:    fmt.Sprintf("orders-%s.xlsx", time.Now().UTC().Format("20060102-150405")),
		ContentType: xlsxContentType,
		Data:        data,
		Rows:        len(orders),
	}

	if s.archive != nil {
		key := fmt.Sprintf("%s/%s-%s", s.prefix, uuid.NewString(), result.Filename)
		if err := s.archive.Upload(ctx, key, xlsxContentType, data); err != nil {
			logger.Error("Failed to archive order export", err, map[string]interface{}{
				"key": key,
			})
			return nil, err
		}
		url, err := s.archive.PresignGet(ctx, key, exportLinkTTL)
		if err != nil {
			return nil, err
		}
		result.DownloadURL = url
	}

	logger.Info("Orders exported", map[string]interface{}{
		"rows":     result.Rows,
		"archived": result.DownloadURL != "",
	})
	return result, nil
}

func renderOrdersWorkbook(orders []model.Order) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, err
	}

	for i, order := range orders {
		customer, email := order.GuestName, order.GuestEmail
		if !order.IsGuest && order.User != nil {
			customer, email = order.User.Name, order.User.Email
		}
		items := 0
		for _, item := range order.Items {
			items += item.Quantity
		}
		total, _ := order.Total.Float64()

		row := []interface{}{
			order.OrderNumber,
			order.CreatedAt.UTC().Format(time.RFC3339),
			string(order.Status),
			customer,
			email,
			order.IsGuest,
			string(order.PaymentMethod),
			items,
			total,
			order.ShippingAddress.Country,
			order.ShippingAddress.City,
			order.Carrier,
			order.TrackingNumber,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
