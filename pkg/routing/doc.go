// Package routing decides which scheduled jobs an agent may pick up, based
// on the membership index published by the reconciler.
package routing
