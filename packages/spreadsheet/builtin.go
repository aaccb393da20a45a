package spreadsheet

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// BuiltInFunctions contains all spreadsheet built-in functions
type BuiltInFunctions struct {
	clock Clock
	rng   RandomGenerator
}

// checkForError returns the error if value is a *SpreadsheetError, nil otherwise
func checkForError(value Primitive) *SpreadsheetError {
	if err, ok := value.(*SpreadsheetError); ok {
		return err
	}
	return nil
}

func runtimeError(format string, args ...any) *SpreadsheetError {
	return NewSpreadsheetError(ErrorCodeError, fmt.Sprintf(format, args...))
}

var (
	numbersArg = Arg{Name: "value", Description: "numbers or ranges", Types: []ArgType{ArgNumber, ArgRange}, Repeating: true}
	anyRepArg  = Arg{Name: "value", Description: "values or ranges", Types: []ArgType{ArgAny, ArgRange}, Repeating: true}
	numberArg  = Arg{Name: "value", Description: "a number", Types: []ArgType{ArgNumber}}
	textArg    = Arg{Name: "text", Description: "a text", Types: []ArgType{ArgString}}
)

// NewDefaultFunctionRegistry creates a registry holding every built-in
// function
func NewDefaultFunctionRegistry(clock Clock, rng RandomGenerator) *FunctionRegistry {
	r := NewFunctionRegistry()
	RegisterBuiltins(r, clock, rng)
	return r
}

// RegisterBuiltins registers the built-in functions on r
func RegisterBuiltins(r *FunctionRegistry, clock Clock, rng RandomGenerator) {
	if clock == nil {
		clock = &WallClock{}
	}
	if rng == nil {
		rng = &DefaultRandomGenerator{}
	}
	bf := &BuiltInFunctions{clock: clock, rng: rng}

	number := []ArgType{ArgNumber}
	r.MustRegister("SUM", FunctionSpec{Description: "Sum of a series of numbers.", Args: []Arg{numbersArg}, Returns: number, Compute: bf.SUM})
	r.MustRegister("AVERAGE", FunctionSpec{Description: "Numerical average value in a dataset.", Args: []Arg{numbersArg}, Returns: number, Compute: bf.AVERAGE})
	r.MustRegister("AVERAGEA", FunctionSpec{Description: "Average of values including text.", Args: []Arg{anyRepArg}, Returns: number, Compute: bf.AVERAGEA})
	r.MustRegister("COUNT", FunctionSpec{Description: "The number of numeric values.", Args: []Arg{anyRepArg}, Returns: number, Compute: bf.COUNT})
	r.MustRegister("COUNTA", FunctionSpec{Description: "The number of values.", Args: []Arg{anyRepArg}, Returns: number, Compute: bf.COUNTA})
	r.MustRegister("MAX", FunctionSpec{Description: "Maximum value in a numeric dataset.", Args: []Arg{numbersArg}, Returns: number, Compute: bf.MAX})
	r.MustRegister("MIN", FunctionSpec{Description: "Minimum value in a numeric dataset.", Args: []Arg{numbersArg}, Returns: number, Compute: bf.MIN})
	r.MustRegister("MEDIAN", FunctionSpec{Description: "Median value in a numeric dataset.", Args: []Arg{numbersArg}, Returns: number, Compute: bf.MEDIAN})
	r.MustRegister("MODE", FunctionSpec{Description: "Most commonly occurring value.", Args: []Arg{numbersArg}, Returns: number, Compute: bf.MODE})

	r.MustRegister("IF", FunctionSpec{
		Description: "Returns value depending on logical expression.",
		Args: []Arg{
			{Name: "logical_expression", Types: []ArgType{ArgBoolean}},
			{Name: "value_if_true", Types: []ArgType{ArgAny}},
			{Name: "value_if_false", Types: []ArgType{ArgAny}, Optional: true, Default: false},
		},
		Returns:       []ArgType{ArgAny},
		Compute:       bf.IF,
		AcceptsErrors: true,
	})
	r.MustRegister("IFERROR", FunctionSpec{
		Description: "Value if it is not an error, otherwise 2nd argument.",
		Args: []Arg{
			{Name: "value", Types: []ArgType{ArgAny}},
			{Name: "value_if_error", Types: []ArgType{ArgAny}, Optional: true, Default: ""},
		},
		Returns:       []ArgType{ArgAny},
		Compute:       bf.IFERROR,
		AcceptsErrors: true,
	})
	logical := Arg{Name: "logical_expression", Description: "booleans or ranges", Types: []ArgType{ArgBoolean, ArgRange}, Repeating: true}
	r.MustRegister("AND", FunctionSpec{Description: "Logical `and` operator.", Args: []Arg{logical}, Returns: []ArgType{ArgBoolean}, Compute: bf.AND})
	r.MustRegister("OR", FunctionSpec{Description: "Logical `or` operator.", Args: []Arg{logical}, Returns: []ArgType{ArgBoolean}, Compute: bf.OR})
	r.MustRegister("NOT", FunctionSpec{
		Description: "Returns opposite of provided logical value.",
		Args:        []Arg{{Name: "logical_expression", Types: []ArgType{ArgBoolean}}},
		Returns:     []ArgType{ArgBoolean},
		Compute:     bf.NOT,
	})

	text := []ArgType{ArgString}
	r.MustRegister("CONCATENATE", FunctionSpec{
		Description: "Appends strings to one another.",
		Args:        []Arg{{Name: "string", Types: []ArgType{ArgString, ArgRange}, Repeating: true}},
		Returns:     text,
		Compute:     bf.CONCATENATE,
	})
	r.MustRegister("LEN", FunctionSpec{Description: "Length of a string.", Args: []Arg{textArg}, Returns: number, Compute: bf.LEN})
	r.MustRegister("UPPER", FunctionSpec{Description: "Converts a string to uppercase.", Args: []Arg{textArg}, Returns: text, Compute: bf.UPPER})
	r.MustRegister("LOWER", FunctionSpec{Description: "Converts a string to lowercase.", Args: []Arg{textArg}, Returns: text, Compute: bf.LOWER})
	r.MustRegister("TRIM", FunctionSpec{Description: "Removes space characters.", Args: []Arg{textArg}, Returns: text, Compute: bf.TRIM})

	r.MustRegister("ABS", FunctionSpec{Description: "Absolute value of a number.", Args: []Arg{numberArg}, Returns: number, Compute: bf.ABS})
	r.MustRegister("ROUND", FunctionSpec{
		Description: "Rounds a number according to standard rules.",
		Args: []Arg{
			numberArg,
			{Name: "places", Types: []ArgType{ArgNumber}, Optional: true, Default: 0.0},
		},
		Returns: number,
		Compute: bf.ROUND,
	})
	r.MustRegister("FLOOR", FunctionSpec{Description: "Rounds number down.", Args: []Arg{numberArg}, Returns: number, Compute: bf.FLOOR})
	r.MustRegister("CEILING", FunctionSpec{Description: "Rounds number up.", Args: []Arg{numberArg}, Returns: number, Compute: bf.CEILING})
	r.MustRegister("SQRT", FunctionSpec{Description: "Positive square root of a positive number.", Args: []Arg{numberArg}, Returns: number, Compute: bf.SQRT})
	r.MustRegister("POWER", FunctionSpec{
		Description: "A number raised to a power.",
		Args:        []Arg{{Name: "base", Types: number}, {Name: "exponent", Types: number}},
		Returns:     number,
		Compute:     bf.POWER,
	})
	r.MustRegister("MOD", FunctionSpec{
		Description: "Modulo (remainder) operator.",
		Args:        []Arg{{Name: "dividend", Types: number}, {Name: "divisor", Types: number}},
		Returns:     number,
		Compute:     bf.MOD,
	})
	r.MustRegister("PI", FunctionSpec{Description: "The number pi.", Returns: number, Compute: bf.PI})
	r.MustRegister("NOW", FunctionSpec{Description: "Current date and time as a date value.", Returns: number, Compute: bf.NOW, Volatile: true})
	r.MustRegister("TODAY", FunctionSpec{Description: "Current date as a date value.", Returns: number, Compute: bf.TODAY, Volatile: true})
	r.MustRegister("RAND", FunctionSpec{Description: "A random number between 0 inclusive and 1 exclusive.", Returns: number, Compute: bf.RAND, Volatile: true})
}

// eachNumber visits the numeric values of scalar and range arguments. range
// errors propagate, non-numeric range values are skipped.
func eachNumber(args []Primitive, visit func(float64)) *SpreadsheetError {
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}
		if r, ok := arg.(Range); ok {
			for value := range r.IterateValues() {
				if err := checkForError(value); err != nil {
					return err
				}
				if num, ok := value.(float64); ok && !math.IsNaN(num) {
					visit(num)
				}
			}
			continue
		}
		if num, ok := toNumber(arg); ok && !math.IsNaN(num) {
			visit(num)
		}
	}
	return nil
}

func (bf *BuiltInFunctions) SUM(args ...Primitive) (Primitive, error) {
	sum := 0.0
	if err := eachNumber(args, func(n float64) { sum += n }); err != nil {
		return nil, err
	}
	rounded, _ := strconv.ParseFloat(fmt.Sprintf("%.15f", sum), 64)
	return rounded, nil
}

func (bf *BuiltInFunctions) AVERAGE(args ...Primitive) (Primitive, error) {
	sum := 0.0
	count := 0
	err := eachNumber(args, func(n float64) {
		sum += n
		count++
	})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, runtimeError("Division by zero")
	}
	return sum / float64(count), nil
}

func (bf *BuiltInFunctions) AVERAGEA(args ...Primitive) (Primitive, error) {
	sum := 0.0
	count := 0

	// AVERAGEA includes all non-empty values in the count but only
	// numeric values contribute to the sum
	processValue := func(value Primitive) *SpreadsheetError {
		switch v := value.(type) {
		case nil:
			// empty cells are ignored
		case *SpreadsheetError:
			return v
		case float64:
			sum += v
			count++
		case bool:
			if v {
				sum += 1
			}
			count++
		case string:
			// text values count as 0
			count++
		}
		return nil
	}
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for value := range r.IterateValues() {
				if err := processValue(value); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := processValue(arg); err != nil {
			return nil, err
		}
	}

	if count == 0 {
		return nil, runtimeError("AVERAGEA has no values")
	}
	return sum / float64(count), nil
}

func (bf *BuiltInFunctions) COUNT(args ...Primitive) (Primitive, error) {
	count := 0
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			// only numbers stored in cells count, errors are skipped
			for value := range r.IterateValues() {
				if _, isNum := value.(float64); isNum {
					count++
				}
			}
			continue
		}
		if _, ok := toNumber(arg); ok && arg != nil {
			if _, isBool := arg.(bool); !isBool {
				count++
			}
		}
	}
	return float64(count), nil
}

func (bf *BuiltInFunctions) COUNTA(args ...Primitive) (Primitive, error) {
	count := 0
	// errors are counted as non-empty values, not propagated
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for value := range r.IterateValues() {
				if value != nil {
					count++
				}
			}
			continue
		}
		count++
	}
	return float64(count), nil
}

func (bf *BuiltInFunctions) MAX(args ...Primitive) (Primitive, error) {
	result := math.Inf(-1)
	hasValues := false
	err := eachNumber(args, func(n float64) {
		result = max(result, n)
		hasValues = true
	})
	if err != nil {
		return nil, err
	}
	if !hasValues {
		return 0.0, nil
	}
	return result, nil
}

func (bf *BuiltInFunctions) MIN(args ...Primitive) (Primitive, error) {
	result := math.Inf(1)
	hasValues := false
	err := eachNumber(args, func(n float64) {
		result = min(result, n)
		hasValues = true
	})
	if err != nil {
		return nil, err
	}
	if !hasValues {
		return 0.0, nil
	}
	return result, nil
}

func (bf *BuiltInFunctions) MEDIAN(args ...Primitive) (Primitive, error) {
	var values []float64
	if err := eachNumber(args, func(n float64) { values = append(values, n) }); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, runtimeError("MEDIAN has no numeric values")
	}

	slices.Sort(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		// even count: average of two middle values
		return (values[mid-1] + values[mid]) / 2, nil
	}
	return values[mid], nil
}

func (bf *BuiltInFunctions) MODE(args ...Primitive) (Primitive, error) {
	frequencyMap := make(map[float64]int)
	if err := eachNumber(args, func(n float64) { frequencyMap[n]++ }); err != nil {
		return nil, err
	}
	if len(frequencyMap) == 0 {
		return nil, runtimeError("MODE has no numeric values")
	}

	maxFreq := 0
	for _, freq := range frequencyMap {
		maxFreq = max(maxFreq, freq)
	}
	if maxFreq == 1 {
		return nil, runtimeError("MODE: no value appears more than once")
	}

	var modes []float64
	for value, freq := range frequencyMap {
		if freq == maxFreq {
			modes = append(modes, value)
		}
	}
	// smallest mode wins ties
	return slices.Min(modes), nil
}

func (bf *BuiltInFunctions) IF(args ...Primitive) (Primitive, error) {
	if err := checkForError(args[0]); err != nil {
		return nil, err
	}
	condition, ok := toBoolean(args[0])
	if !ok {
		return nil, runtimeError("IF expects a boolean condition")
	}
	if condition {
		return args[1], nil
	}
	return args[2], nil
}

func (bf *BuiltInFunctions) IFERROR(args ...Primitive) (Primitive, error) {
	if checkForError(args[0]) != nil {
		return args[1], nil
	}
	return args[0], nil
}

// eachBoolean visits boolean arguments, range values are coerced and empty
// cells skipped
func eachBoolean(fnName string, args []Primitive, visit func(bool)) *SpreadsheetError {
	found := false
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for value := range r.IterateValues() {
				if err := checkForError(value); err != nil {
					return err
				}
				if value == nil {
					continue
				}
				if b, ok := toBoolean(value); ok {
					visit(b)
					found = true
				}
			}
			continue
		}
		visit(arg.(bool))
		found = true
	}
	if !found {
		return runtimeError("%s has no valid input data", fnName)
	}
	return nil
}

func (bf *BuiltInFunctions) AND(args ...Primitive) (Primitive, error) {
	result := true
	if err := eachBoolean("AND", args, func(b bool) { result = result && b }); err != nil {
		return nil, err
	}
	return result, nil
}

func (bf *BuiltInFunctions) OR(args ...Primitive) (Primitive, error) {
	result := false
	if err := eachBoolean("OR", args, func(b bool) { result = result || b }); err != nil {
		return nil, err
	}
	return result, nil
}

func (bf *BuiltInFunctions) NOT(args ...Primitive) (Primitive, error) {
	return !args[0].(bool), nil
}

func (bf *BuiltInFunctions) CONCATENATE(args ...Primitive) (Primitive, error) {
	var result strings.Builder
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for value := range r.IterateValues() {
				if err := checkForError(value); err != nil {
					return nil, err
				}
				result.WriteString(toString(value))
			}
			continue
		}
		result.WriteString(toString(arg))
	}
	return result.String(), nil
}

func (bf *BuiltInFunctions) LEN(args ...Primitive) (Primitive, error) {
	return float64(len([]rune(args[0].(string)))), nil
}

func (bf *BuiltInFunctions) UPPER(args ...Primitive) (Primitive, error) {
	return strings.ToUpper(args[0].(string)), nil
}

func (bf *BuiltInFunctions) LOWER(args ...Primitive) (Primitive, error) {
	return strings.ToLower(args[0].(string)), nil
}

func (bf *BuiltInFunctions) TRIM(args ...Primitive) (Primitive, error) {
	return strings.Join(strings.Fields(args[0].(string)), " "), nil
}

func (bf *BuiltInFunctions) ABS(args ...Primitive) (Primitive, error) {
	return math.Abs(args[0].(float64)), nil
}

func (bf *BuiltInFunctions) ROUND(args ...Primitive) (Primitive, error) {
	num := args[0].(float64)
	places := math.Trunc(args[1].(float64))
	multiplier := math.Pow(10, places)
	return math.Round(num*multiplier) / multiplier, nil
}

func (bf *BuiltInFunctions) FLOOR(args ...Primitive) (Primitive, error) {
	return math.Floor(args[0].(float64)), nil
}

func (bf *BuiltInFunctions) CEILING(args ...Primitive) (Primitive, error) {
	return math.Ceil(args[0].(float64)), nil
}

func (bf *BuiltInFunctions) SQRT(args ...Primitive) (Primitive, error) {
	num := args[0].(float64)
	if num < 0 {
		return nil, runtimeError("SQRT requires a non-negative argument")
	}
	return math.Sqrt(num), nil
}

func (bf *BuiltInFunctions) POWER(args ...Primitive) (Primitive, error) {
	result := math.Pow(args[0].(float64), args[1].(float64))
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, runtimeError("POWER result is not a number")
	}
	return result, nil
}

func (bf *BuiltInFunctions) MOD(args ...Primitive) (Primitive, error) {
	dividend := args[0].(float64)
	divisor := args[1].(float64)
	if divisor == 0 {
		return nil, runtimeError("Division by zero")
	}
	// the result takes the sign of the divisor
	mod := math.Mod(dividend, divisor)
	if mod != 0 && (mod < 0) != (divisor < 0) {
		mod += divisor
	}
	return mod, nil
}

func (bf *BuiltInFunctions) PI(args ...Primitive) (Primitive, error) {
	return math.Pi, nil
}

// Excel date/time constants
const (
	// December 30, 1899 00:00:00 UTC in Unix milliseconds
	EXCEL_EPOCH_MS = -2209161600000
	MS_PER_DAY     = 86400000 // milliseconds in a day
)

// toSerialDate converts a time to a spreadsheet date number, keeping the
// wall clock of its location
func toSerialDate(t time.Time) float64 {
	_, offset := t.Zone()
	diffMs := float64(t.UnixMilli() + int64(offset)*1000 - EXCEL_EPOCH_MS)
	return diffMs / MS_PER_DAY
}

func (bf *BuiltInFunctions) NOW(args ...Primitive) (Primitive, error) {
	return toSerialDate(bf.clock.Now()), nil
}

func (bf *BuiltInFunctions) TODAY(args ...Primitive) (Primitive, error) {
	return math.Floor(toSerialDate(bf.clock.Now())), nil
}

func (bf *BuiltInFunctions) RAND(args ...Primitive) (Primitive, error) {
	return bf.rng.Float64(), nil
}

// toNumber converts value to number, returning ok=false if conversion fails
func toNumber(value Primitive) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		return boolToNumber(v), true
	case string:
		if v == "" {
			return 0, true
		}
		return parseNumberContent(v)
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

func boolToNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// toBoolean converts value to a boolean: numbers are true when non-zero,
// text must read TRUE or FALSE
func toBoolean(value Primitive) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	case nil:
		return false, true
	case string:
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "TRUE":
			return true, true
		case "FALSE", "":
			return false, true
		}
	}
	return false, false
}

// toString converts value to string
func toString(value Primitive) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case *SpreadsheetError:
		return v.Sentinel()
	default:
		return fmt.Sprint(value)
	}
}

// isTruthy checks if value is truthy
func isTruthy(value Primitive) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case nil:
		return false
	default:
		return true
	}
}

func isRange(v Primitive) bool {
	_, ok := v.(Range)
	return ok
}
