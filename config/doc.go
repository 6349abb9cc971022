/*
Package config provides the options of a checkpoint conversion run, taken from
command line flags, “PMCONVERT_*” environment variables, and an optional
configuration file, in this order of precedence.
*/
package config
