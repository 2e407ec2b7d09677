package script

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/arijanluiken/quantcore/pkg/quant"
	"github.com/arijanluiken/quantcore/pkg/ticker"
)

func (e *Engine) setupBuiltins() {
	e.builtin = starlark.StringDict{
		"normalize_ticker": starlark.NewBuiltin("normalize_ticker", e.normalizeTicker),
		"sma":              starlark.NewBuiltin("sma", e.sma),
		"ema":              starlark.NewBuiltin("ema", e.ema),
		"rsi":              starlark.NewBuiltin("rsi", e.rsi),
		"macd":             starlark.NewBuiltin("macd", e.macd),
		"bbands":           starlark.NewBuiltin("bbands", e.bbands),
		"log":              starlark.NewBuiltin("log", e.logFunc),
		"print":            starlark.NewBuiltin("print", e.printFunc),
	}
}

func (e *Engine) normalizeTicker(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var raw starlark.String

	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "ticker", &raw); err != nil {
		return nil, err
	}

	return starlark.String(ticker.Normalize(string(raw))), nil
}

func (e *Engine) sma(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prices starlark.Value
	var period starlark.Int

	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "prices", &prices, "period?", &period); err != nil {
		return nil, err
	}

	data, err := starlarkToFloats(prices)
	if err != nil {
		return nil, err
	}

	periodInt, _ := period.Int64()
	if periodInt == 0 {
		periodInt = quant.DefaultSMAPeriod
	}

	result, err := quant.SMA(data, int(periodInt))
	if err != nil {
		return nil, err
	}
	return floatsToStarlark(result), nil
}

func (e *Engine) ema(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prices starlark.Value
	var period starlark.Int

	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "prices", &prices, "period?", &period); err != nil {
		return nil, err
	}

	data, err := starlarkToFloats(prices)
	if err != nil {
		return nil, err
	}

	periodInt, _ := period.Int64()
	if periodInt == 0 {
		periodInt = quant.DefaultEMAPeriod
	}

	result, err := quant.EMA(data, int(periodInt))
	if err != nil {
		return nil, err
	}
	return floatsToStarlark(result), nil
}

func (e *Engine) rsi(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prices starlark.Value
	var period starlark.Int

	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "prices", &prices, "period?", &period); err != nil {
		return nil, err
	}

	data, err := starlarkToFloats(prices)
	if err != nil {
		return nil, err
	}

	periodInt, _ := period.Int64()
	if periodInt == 0 {
		periodInt = quant.DefaultRSIPeriod
	}

	result, err := quant.RSI(data, int(periodInt))
	if err != nil {
		return nil, err
	}
	return floatsToStarlark(result), nil
}

func (e *Engine) macd(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prices starlark.Value
	var fast, slow, signal starlark.Int

	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "prices", &prices, "fast?", &fast, "slow?", &slow, "signal?", &signal); err != nil {
		return nil, err
	}

	data, err := starlarkToFloats(prices)
	if err != nil {
		return nil, err
	}

	fastInt, _ := fast.Int64()
	slowInt, _ := slow.Int64()
	signalInt, _ := signal.Int64()

	if fastInt == 0 {
		fastInt = quant.DefaultMACDFast
	}
	if slowInt == 0 {
		slowInt = quant.DefaultMACDSlow
	}
	if signalInt == 0 {
		signalInt = quant.DefaultMACDSignal
	}

	macdLine, signalLine, histogram, err := quant.MACD(data, int(fastInt), int(slowInt), int(signalInt))
	if err != nil {
		return nil, err
	}

	result := starlark.NewDict(3)
	result.SetKey(starlark.String("macd"), floatsToStarlark(macdLine))
	result.SetKey(starlark.String("signal"), floatsToStarlark(signalLine))
	result.SetKey(starlark.String("histogram"), floatsToStarlark(histogram))

	return result, nil
}

func (e *Engine) bbands(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prices starlark.Value
	var period starlark.Int
	var stdDev starlark.Float

	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "prices", &prices, "period?", &period, "std_dev?", &stdDev); err != nil {
		return nil, err
	}

	data, err := starlarkToFloats(prices)
	if err != nil {
		return nil, err
	}

	periodInt, _ := period.Int64()
	if periodInt == 0 {
		periodInt = quant.DefaultBBandsPeriod
	}

	mult := float64(stdDev)
	if mult == 0 {
		mult = quant.DefaultBBandsStdDev
	}

	upper, middle, lower, err := quant.BollingerBands(data, int(periodInt), mult)
	if err != nil {
		return nil, err
	}

	result := starlark.NewDict(3)
	result.SetKey(starlark.String("upper"), floatsToStarlark(upper))
	result.SetKey(starlark.String("middle"), floatsToStarlark(middle))
	result.SetKey(starlark.String("lower"), floatsToStarlark(lower))

	return result, nil
}

func (e *Engine) logFunc(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg starlark.String

	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "message", &msg); err != nil {
		return nil, err
	}

	e.logger.Info().Str("source", "script").Msg(string(msg))
	return starlark.None, nil
}

func (e *Engine) printFunc(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	fmt.Println(args.String())
	return starlark.None, nil
}
