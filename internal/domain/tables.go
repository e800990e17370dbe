package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOpr{},
	&SysOprLog{},
	&SysScheduler{},
	// Point of sale
	&Category{},
	&Product{},
	&Transaction{},
	&StoreSettings{},
}

// TableNames lists the tables above in migration order
func TableNames() []string {
	return []string{
		SysConfig{}.TableName(),
		SysOpr{}.TableName(),
		SysOprLog{}.TableName(),
		SysScheduler{}.TableName(),
		Category{}.TableName(),
		Product{}.TableName(),
		Transaction{}.TableName(),
		StoreSettings{}.TableName(),
	}
}
