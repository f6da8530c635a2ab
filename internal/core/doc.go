// Package core implements the installation engine for managed Concourse
// Server instances: workspace layout, non-interactive installer execution,
// post-install verification, and preference rewriting for collision-free
// operation alongside other concurrently provisioned instances.
package core
