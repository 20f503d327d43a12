package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"expensehub/service"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// ExportHandler 导出处理器
type ExportHandler struct {
	expenses *service.ExpenseService
}

// NewExportHandler 创建导出处理器
func NewExportHandler(expenses *service.ExpenseService) *ExportHandler {
	return &ExportHandler{expenses: expenses}
}

// ExportRequest 导出参数，日期均可省略
type ExportRequest struct {
	Format string `form:"format" binding:"omitempty,oneof=csv xlsx" example:"csv"`
	From   string `form:"from" example:"2026-01-01"`
	To     string `form:"to" example:"2026-12-31"`
}

// parseDay 返回当天零点；nextDay 时返回次日零点，作为不含的上界
func parseDay(value string, nextDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.Local)
	if err != nil {
		return nil, err
	}
	if nextDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// Export 导出本人报销单
// @Summary 导出报销单
// @Description 导出为 CSV（带 BOM）或 Excel，Excel 末尾按币种汇总
// @Tags 导出
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param format query string false "csv 或 xlsx" default(csv)
// @Param from query string false "开始日期 (2026-01-01)"
// @Param to query string false "结束日期 (2026-12-31)"
// @Success 200 {file} file "导出文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/expenses/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BindError(c, err)
		return
	}
	if req.Format == "" {
		req.Format = "csv"
	}
	from, err := parseDay(req.From, false)
	if err != nil {
		BadRequest(c, "Invalid from date, expected YYYY-MM-DD.")
		return
	}
	before, err := parseDay(req.To, true)
	if err != nil {
		BadRequest(c, "Invalid to date, expected YYYY-MM-DD.")
		return
	}
	if from != nil && before != nil && !before.After(*from) {
		BadRequest(c, "The to date must not be before the from date.")
		return
	}

	expenses, err := h.expenses.ExportRows(c.Request.Context(), currentActor(c), from, before)
	if err != nil {
		RespondError(c, err, "Server error while exporting expenses.")
		return
	}

	buf := new(bytes.Buffer)
	contentType := "text/csv; charset=utf-8"
	if req.Format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = service.WriteXLSX(buf, expenses)
	} else {
		err = service.WriteCSV(buf, expenses)
	}
	if err != nil {
		RespondError(c, err, "Failed to generate export file.")
		return
	}

	filename := fmt.Sprintf("expenses_%s.%s", time.Now().Format("20060102"), req.Format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
