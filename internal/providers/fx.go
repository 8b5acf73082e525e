package providers

import (
	"github.com/smallbiznis/colegio/internal/providers/alert"
	"github.com/smallbiznis/colegio/internal/providers/email"
	"github.com/smallbiznis/colegio/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	alert.Module,
	email.Module,
	pdf.Module,
)
