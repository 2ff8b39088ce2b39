package models

// Зеркальные доменные таблицы торговой точки
const (
	TableOrders         = "orders"
	TableOrderItems     = "order_items"
	TableMenuItems      = "menu_items"
	TableMenuCategories = "menu_categories"
	TableEmployees      = "employees"
	TableCustomers      = "customers"
	TablePayments       = "payments"
)

var domainTables = []string{
	TableOrders,
	TableOrderItems,
	TableMenuItems,
	TableMenuCategories,
	TableEmployees,
	TableCustomers,
	TablePayments,
}

// DomainTables returns the mirrored domain tables in schema order
func DomainTables() []string {
	out := make([]string, len(domainTables))
	copy(out, domainTables)
	return out
}

// IsDomainTable reports whether table is one of the mirrored domain tables
func IsDomainTable(table string) bool {
	for _, t := range domainTables {
		if t == table {
			return true
		}
	}
	return false
}

// DefaultBusinessKeys уникальные бизнес-ключи облачных таблиц: поле записи,
// совпадение которого у разных id означает дубликат
func DefaultBusinessKeys() map[string]string {
	return map[string]string{
		TableOrders:    "order_number",
		TableCustomers: "email",
		TableEmployees: "employee_code",
		TableMenuItems: "sku",
	}
}
