package mysql

import "github.com/ekaya-inc/querypad/pkg/adapters/datasource"

func init() {
	datasource.Register(&Driver{})
}
