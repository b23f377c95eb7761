package config

import "dario.cat/mergo"

// MergeDeliveryConfig layers a route's then.config over a module's
// defaults.delivery_config, with the route's keys winning on conflict.
// Uses mergo rather than a hand-rolled key loop so nested maps merge
// field-by-field instead of one side clobbering the other wholesale.
func MergeDeliveryConfig(defaults, routeConfig map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(defaults)+len(routeConfig))
	for k, v := range defaults {
		out[k] = v
	}
	if err := mergo.Merge(&out, routeConfig, mergo.WithOverride); err != nil {
		return nil, err
	}
	return out, nil
}
