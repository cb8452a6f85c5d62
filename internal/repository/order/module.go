package order

import "go.uber.org/fx"

// Module provides the order repository to Fx, exposed as the Store contract.
var Module = fx.Provide(
	fx.Annotate(NewRepository, fx.As(new(Store))),
)
